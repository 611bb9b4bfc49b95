package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"hostel_availability/internal/adapters/observability"
	"hostel_availability/internal/domain"
)

// MaxHorizonYears bounds every query window and mutation range.
const MaxHorizonYears = 2

func checkHorizon(r domain.Range) error {
	if r.End > r.Start.AddYears(MaxHorizonYears) {
		return fmt.Errorf("%w: %s spans more than %d years", domain.ErrInvalidRange, r, MaxHorizonYears)
	}
	return nil
}

// ValidateWindow accepts from <= to within the horizon.
func ValidateWindow(r domain.Range) error {
	if r.End < r.Start {
		return fmt.Errorf("%w: %s is inverted", domain.ErrInvalidRange, r)
	}
	return checkHorizon(r)
}

// ValidateStay requires check_in strictly before check_out.
func ValidateStay(r domain.Range) error {
	if r.End <= r.Start {
		return fmt.Errorf("%w: check-in %s must be before check-out %s", domain.ErrInvalidRange, r.Start, r.End)
	}
	return checkHorizon(r)
}

// outcome buckets an error into a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidRange):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNoRoomAvailable):
		return "no_room"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return "conflict"
	default:
		return "error"
	}
}

// reportInvariant surfaces consistency failures loudly; they are never repaired.
func reportInvariant(err error, roomID int64, op string) {
	if errors.Is(err, domain.ErrInvariantViolation) {
		observability.ObserveInvariantViolation()
		log.Error().Err(err).Int64("room_id", roomID).Str("op", op).Msg("calendar invariant violated")
	}
}
