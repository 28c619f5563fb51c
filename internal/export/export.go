// Package export writes the collections of a pipeline run as JSON files.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"attn-signals/internal/config"
	"attn-signals/internal/pipeline"
	"attn-signals/internal/stats"

	"github.com/rs/zerolog/log"
)

// ManifestFile is the name of the run description written last.
const ManifestFile = "run.json"

// Manifest describes one exported run.
type Manifest struct {
	RunID       string             `json:"runId"`
	Input       string             `json:"input"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Policy      config.Policy      `json:"policy"`
	Stats       pipeline.Stats     `json:"stats"`
	Calendar    stats.TermCalendar `json:"calendar"`
	Files       []string           `json:"files"`
}

// Write stores every collection of res in dir, one file each, then the
// manifest. Each file is replaced atomically.
func Write(dir string, res *pipeline.Result, m Manifest) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	collections := []struct {
		name string
		data any
	}{
		{"classified.json", res.Classified},
		{"daily.json", res.Daily},
		{"weekly.json", res.Weekly},
		{"smoothed.json", res.Smoothed},
		{"trends.json", res.Trends},
		{"student_trends.json", res.StudentTrends},
		{"tiers.json", res.Tiers},
		{"candidates.json", res.Candidates},
		{"awards.json", res.Awards},
		{"cut_summary.json", res.CutSummaries},
	}

	files := make([]string, 0, len(collections)+1)
	for _, c := range collections {
		if err := writeJSON(filepath.Join(dir, c.name), c.data); err != nil {
			return files, err
		}
		files = append(files, c.name)
	}

	m.RunID = res.RunID
	m.Stats = res.Stats
	m.Calendar = res.Calendar
	m.Files = files
	if err := writeJSON(filepath.Join(dir, ManifestFile), m); err != nil {
		return files, err
	}
	files = append(files, ManifestFile)

	log.Info().Str("dir", dir).Str("run", res.RunID).Int("files", len(files)).Msg("Exported run")
	return files, nil
}

// writeJSON encodes v with indentation into path via a temp file and rename.
func writeJSON(path string, v any) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
