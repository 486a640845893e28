package store

import "fmt"

// NotFoundError reports that a referenced backend or policy record does
// not exist under the given keys.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// ConflictError reports a registration whose instance id is already taken
// somewhere in the registry. The message names the conflicting identifier
// so callers can report which instance is duplicated.
type ConflictError struct {
	InstanceID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("backend with instance id %q already exists", e.InstanceID)
}

// ValidationError reports malformed input to a mutating operation. The
// referenced record is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
