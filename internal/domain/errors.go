package domain

import "errors"

// ErrValidation is returned when a domain entity fails validation.
// Entity-specific validation errors wrap it, so callers at the transport
// boundary can test for it with errors.Is.
var ErrValidation = errors.New("validation failed")
