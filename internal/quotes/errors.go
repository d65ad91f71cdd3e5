package quotes

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds returned by the Store. Callers match them with errors.Is.
var (
	// ErrValidation marks malformed input. Not retryable.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks the absence of a matching, visible record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation on an insert-only path.
	ErrConflict = errors.New("conflict")
	// ErrPersistence marks a database failure. May be transient.
	ErrPersistence = errors.New("persistence error")
)

// Kind classifies a Store error for transport layers
type Kind int

const (
	KindOK Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "persistence"
	}
}

// KindOf returns the kind of err. Errors that did not come from the Store
// are treated as persistence failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindPersistence
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// classify turns a database error into one of the Store kinds. Errors that
// already carry a kind pass through unchanged.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s: referenced record does not exist", ErrNotFound, op)
	default:
		return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
}

// IsTimeout reports whether err was caused by an expired deadline
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
