package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRange       = errors.New("invalid range")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNoRoomAvailable    = errors.New("no room available")
	ErrInvalidTransition  = errors.New("invalid booking transition")
	ErrForbidden          = errors.New("forbidden")
)

// ConflictError carries the days that blocked a mutation so callers can
// suggest alternatives. It matches ErrConflict under errors.Is.
type ConflictError struct {
	Ranges []Interval
}

func (e *ConflictError) Error() string {
	if len(e.Ranges) == 0 {
		return ErrConflict.Error()
	}
	parts := make([]string, len(e.Ranges))
	for i, r := range e.Ranges {
		parts[i] = r.String()
	}
	return ErrConflict.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type TransitionError struct {
	From, To BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// ConflictRanges extracts the conflicting ranges from err, if any.
func ConflictRanges(err error) []Interval {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Ranges
	}
	return nil
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNoRoomAvailable) ||
		errors.Is(err, ErrInvalidTransition)
}
