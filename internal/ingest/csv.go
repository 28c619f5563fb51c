package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"attn-signals/internal/punch"

	"github.com/rs/zerolog/log"
)

// ReadCSVFile reads punches from a CSV file.
func ReadCSVFile(path string) ([]punch.Punch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	punches, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("path", path).Int("punches", len(punches)).Msg("Read attendance csv")
	return punches, nil
}

// ReadCSV reads punches from CSV whose first row is a header.
func ReadCSV(r io.Reader) ([]punch.Punch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols, ok := headerIndex(header)
	if !ok {
		return nil, ErrNoHeader
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return parseRows(cols, rows), nil
}
