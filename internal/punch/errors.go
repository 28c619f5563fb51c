package punch

import "errors"

// Sentinel errors for punch validation. Callers match them with errors.Is.
var (
	ErrUnknownMark  = errors.New("unknown attendance mark")
	ErrPeriodRange  = errors.New("period out of range")
	ErrMissingField = errors.New("missing required field")
	ErrMissingDate  = errors.New("missing date")
)
