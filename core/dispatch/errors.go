package dispatch

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a microgrid or dispatch does not
// exist. The service wraps it into a NotFoundError.
var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected create or update request. The stored
// dispatch is never modified when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid dispatch: " + e.Reason
	}
	return fmt.Sprintf("invalid dispatch: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown microgrid or dispatch.
type NotFoundError struct {
	MicrogridID uint64
	// DispatchID is zero when the microgrid itself is unknown.
	DispatchID uint64
}

func (e *NotFoundError) Error() string {
	if e.DispatchID == 0 {
		return fmt.Sprintf("microgrid %d not found", e.MicrogridID)
	}
	return fmt.Sprintf("dispatch %d not found in microgrid %d", e.DispatchID, e.MicrogridID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err carries a NotFoundError or ErrNotFound.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrNotFound)
}
