package punch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// SanitizeReport summarises what the filtering step removed.
type SanitizeReport struct {
	Received   int            `json:"received"`
	Kept       int            `json:"kept"`
	Dropped    int            `json:"dropped"`
	Duplicates int            `json:"duplicates"`
	Reasons    map[string]int `json:"reasons,omitempty"`
}

// Validate checks that a punch can enter the derivation stages.
func Validate(p Punch) error {
	if strings.TrimSpace(p.StudentID) == "" {
		return fmt.Errorf("%w: studentId", ErrMissingField)
	}
	if strings.TrimSpace(p.Course) == "" {
		return fmt.Errorf("%w: course", ErrMissingField)
	}
	if p.Date.IsZero() {
		return ErrMissingDate
	}
	if p.Period < MinPeriod || p.Period > MaxPeriod {
		return fmt.Errorf("%w: %d", ErrPeriodRange, p.Period)
	}
	if !p.Mark.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMark, p.Mark)
	}
	return nil
}

// Sanitize drops malformed punches and collapses duplicate identities.
// Dropping is a deliberate filter, not a reported error. When an identity
// repeats, the later punch replaces the earlier one in its original position.
func Sanitize(punches []Punch) ([]Punch, SanitizeReport) {
	report := SanitizeReport{
		Received: len(punches),
		Reasons:  make(map[string]int),
	}

	kept := make([]Punch, 0, len(punches))
	seen := make(map[string]int, len(punches))

	for _, p := range punches {
		if err := Validate(p); err != nil {
			report.Dropped++
			report.Reasons[reasonOf(err)]++
			log.Debug().Err(err).Str("student", p.StudentID).Str("course", p.Course).Msg("Dropping malformed punch")
			continue
		}

		p.Date = p.Day()
		id := p.Identity()
		if idx, ok := seen[id]; ok {
			kept[idx] = p
			report.Duplicates++
			continue
		}
		seen[id] = len(kept)
		kept = append(kept, p)
	}

	report.Kept = len(kept)
	if len(report.Reasons) == 0 {
		report.Reasons = nil
	}
	return kept, report
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrPeriodRange):
		return "period_range"
	case errors.Is(err, ErrUnknownMark):
		return "unknown_mark"
	case errors.Is(err, ErrMissingDate):
		return "missing_date"
	default:
		return "missing_field"
	}
}
