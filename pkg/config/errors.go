package config

import "errors"

// ErrInvalidConfig is returned when environment configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")
