package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a missing record; callers match with errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrInvariant marks an operation rejected before any mutation,
	// e.g. deleting a settled credit transaction.
	ErrInvariant = errors.New("invariant violation")
)

// NotFoundError wraps ErrNotFound with enough context to diagnose
// without consulting logs.
func NotFoundError(collection string, id any) error {
	return fmt.Errorf("%s %v: %w", collection, id, ErrNotFound)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InvariantError wraps ErrInvariant with a descriptive message.
func InvariantError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// ValidationError aggregates structural or referential violations. Its
// message shows at most ten of them plus a count of the remainder.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	const limit = 10
	shown := e.Violations
	remainder := 0
	if len(shown) > limit {
		remainder = len(shown) - limit
		shown = shown[:limit]
	}
	msg := "invalid data:\n" + strings.Join(shown, "\n")
	if remainder > 0 {
		msg += fmt.Sprintf("\n... and %d more violation(s)", remainder)
	}
	return msg
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BatchResult summarizes a best-effort fan-out; failed sub-tasks are
// counted, never re-raised.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
