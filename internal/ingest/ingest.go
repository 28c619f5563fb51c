// Package ingest turns attendance exports (CSV, Excel workbooks and JSONL
// punch logs) into punches. Values that cannot be parsed are passed through in
// a form punch.Sanitize drops, so malformed rows are filtered in one place.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"attn-signals/internal/punch"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported input format")
	// ErrNoHeader is returned when no row carries the required columns.
	ErrNoHeader = errors.New("no attendance header row found")
)

// Column names recognised in headers, after normalisation.
const (
	colStudent   = "student"
	colDate      = "date"
	colPeriod    = "period"
	colCourse    = "course"
	colSection   = "section"
	colTeacher   = "teacher"
	colMark      = "mark"
	colName      = "name"
	colCohort    = "cohort"
	colCounselor = "counselor"
	colSchedule  = "schedule"
)

var aliases = map[string]string{
	"studentid":   colStudent,
	"student":     colStudent,
	"osis":        colStudent,
	"id":          colStudent,
	"date":        colDate,
	"attdate":     colDate,
	"period":      colPeriod,
	"pd":          colPeriod,
	"course":      colCourse,
	"coursecode":  colCourse,
	"section":     colSection,
	"teacherid":   colTeacher,
	"teacher":     colTeacher,
	"mark":        colMark,
	"marktype":    colMark,
	"attendance":  colMark,
	"type":        colMark,
	"studentname": colName,
	"name":        colName,
	"cohort":      colCohort,
	"grade":       colCohort,
	"counselorid": colCounselor,
	"counselor":   colCounselor,
	"schedule":    colSchedule,
}

var required = []string{colStudent, colDate, colPeriod, colCourse, colMark}

// headerScanRows bounds how far down a sheet the header row is searched for.
const headerScanRows = 10

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1/2/06",
	"20060102",
}

// ReadFile dispatches on the file extension.
func ReadFile(path string) ([]punch.Punch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSVFile(path)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	case ".jsonl", ".ndjson":
		return ReadJSONL(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// ReadXLSX reads the first sheet of a workbook that has an attendance header
// within its first rows.
func ReadXLSX(path string) ([]punch.Punch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheet).Msg("Skipping unreadable sheet")
			continue
		}
		for i := 0; i < len(rows) && i < headerScanRows; i++ {
			cols, ok := headerIndex(rows[i])
			if !ok {
				continue
			}
			punches := parseRows(cols, rows[i+1:])
			log.Info().Str("path", path).Str("sheet", sheet).Int("header_row", i+1).Int("punches", len(punches)).Msg("Read attendance sheet")
			return punches, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoHeader, path)
}

// ReadJSONL reads a punch log written by punch.Store.
func ReadJSONL(path string) ([]punch.Punch, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open punch log: %w", err)
	}
	term := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	store := punch.NewStore()
	if err := store.LoadFile(path, term); err != nil {
		return nil, err
	}
	return store.All(term), nil
}

// headerIndex maps normalised column names to their positions. It reports
// false unless every required column is present.
func headerIndex(row []string) (map[string]int, bool) {
	cols := make(map[string]int)
	for i, cell := range row {
		name, ok := aliases[normalize(cell)]
		if !ok {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			return nil, false
		}
	}
	return cols, true
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.NewReplacer("_", "", " ", "", "-", "", ".", "").Replace(s)
}

func parseRows(cols map[string]int, rows [][]string) []punch.Punch {
	out := make([]punch.Punch, 0, len(rows))
	for _, row := range rows {
		if blank(row) {
			continue
		}
		out = append(out, parseRow(cols, row))
	}
	return out
}

func parseRow(cols map[string]int, row []string) punch.Punch {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	p := punch.Punch{
		StudentID:   get(colStudent),
		Date:        parseDate(get(colDate)),
		Period:      parsePeriod(get(colPeriod)),
		Course:      get(colCourse),
		Section:     get(colSection),
		TeacherID:   get(colTeacher),
		StudentName: get(colName),
		Cohort:      get(colCohort),
		CounselorID: get(colCounselor),
		Schedule:    get(colSchedule),
	}

	raw := get(colMark)
	mark, err := punch.ParseMark(raw)
	if err != nil {
		// Left unresolved so Sanitize counts it as an unknown mark
		mark = punch.Mark(raw)
	}
	p.Mark = mark
	return p
}

// parseDate accepts the common export layouts and Excel serial numbers.
// Unparseable values yield the zero time.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return punch.DayOf(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return punch.DayOf(t)
		}
	}
	return time.Time{}
}

// parsePeriod returns 0, which is out of range, for non-numeric periods.
func parsePeriod(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return 0
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
