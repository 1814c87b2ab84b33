package am

import (
	"errors"
	"fmt"
)

// ErrStructuralInput is matched by every StructuralInputError.
var ErrStructuralInput = errors.New("structural input error")

// StructuralInputError reports a missing or malformed field on an input
// text or metadata record.
type StructuralInputError struct {
	ID     string // offending AM id, empty when unknown
	Field  string
	Reason string
}

func (e *StructuralInputError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: field %q: %s", ErrStructuralInput, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: field %q: %s", ErrStructuralInput, e.ID, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrStructuralInput) hold.
func (e *StructuralInputError) Is(target error) bool {
	return target == ErrStructuralInput
}

func structural(id, field, format string, args ...any) error {
	return &StructuralInputError{ID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
}
