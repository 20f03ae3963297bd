package service

import "errors"

// Failure taxonomy for lifecycle operations. Handlers match these
// with errors.Is; a rejected operation leaves all entities unchanged.
var (
	// ErrValidation marks a malformed or missing required field.
	ErrValidation = errors.New("validation failed")
	// ErrAccessDenied marks an operation by a member outside the
	// task's family, or a member who has not joined a family.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound marks an unresolved task or subtask id.
	ErrNotFound = errors.New("not found")
)
