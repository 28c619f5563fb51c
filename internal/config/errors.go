package config

import "errors"

var (
	// ErrInvalidPolicy is returned when a loaded policy fails validation.
	ErrInvalidPolicy = errors.New("invalid policy")
	// ErrLoadPolicy wraps failures reading the policy file or environment.
	ErrLoadPolicy = errors.New("load policy failed")
)
