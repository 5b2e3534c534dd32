package model

import "errors"

// Failure taxonomy shared by the approval store, snapshot manager and diff
// service. Callers detect conditions with errors.Is; every returned error wraps
// exactly one of these with context.
var (
	// ErrNotFound is returned for an unknown approval id or snapshot version.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// approval's current status, e.g. comment on a resolved approval or
	// delete of a non-approved one.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned for a decision on a non-pending approval.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrIOFailure is returned when the reviewed artifact cannot be read or
	// written during snapshot capture or diffing.
	ErrIOFailure = errors.New("io failure")

	// ErrValidation is returned when required fields are missing or malformed.
	ErrValidation = errors.New("validation error")
)
