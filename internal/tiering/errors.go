package tiering

import "errors"

var (
	// ErrEmptyCohort is returned when there is no student to tier.
	ErrEmptyCohort = errors.New("no students to tier")
	// ErrMissingCohort is returned when a student has no cohort label and no default is configured.
	ErrMissingCohort = errors.New("student has no cohort")
)
