package models

import "errors"

// Domain error taxonomy. Validation and permission failures are rejected
// before any write reaches the store.
var (
	ErrValidation       = errors.New("invalid input")
	ErrPermissionDenied = errors.New("permission denied")
)
