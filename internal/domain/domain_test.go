package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel_availability/internal/domain"
)

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := domain.ParseDate("2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", d.String())
	assert.Equal(t, domain.NewDate(2024, time.March, 11), d.AddDays(1))

	_, err = domain.ParseDate("2024-13-01")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
	_, err = domain.ParseDate("10/03/2024")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestDate_JSON(t *testing.T) {
	var body struct {
		D domain.Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &body))
	assert.Equal(t, domain.NewDate(2024, time.February, 29), body.D)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-02-29"}`, string(out))

	err = json.Unmarshal([]byte(`{"d":"nope"}`), &body)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestParseRange_RejectsInverted(t *testing.T) {
	_, err := domain.ParseRange("2024-03-15", "2024-03-10")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	r, err := domain.ParseRange("2024-03-10", "2024-03-10")
	require.NoError(t, err)
	assert.True(t, r.Empty())
}

func TestRange_OverlapIsHalfOpen(t *testing.T) {
	a, _ := domain.ParseRange("2024-03-10", "2024-03-15")
	b, _ := domain.ParseRange("2024-03-15", "2024-03-20")
	c, _ := domain.ParseRange("2024-03-14", "2024-03-16")

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Overlaps(c))
	assert.Equal(t, 1, a.Intersect(c).Days())
	assert.True(t, a.Intersect(b).Empty())
}

func TestRange_Months(t *testing.T) {
	r, _ := domain.ParseRange("2024-01-30", "2024-03-01")
	months := r.Months()
	require.Len(t, months, 2)
	assert.Equal(t, "2024-01", months[0].String())
	assert.Equal(t, "2024-02", months[1].String())

	ym, err := domain.ParseYearMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 29, ym.Range().Days())
}

func TestBookingTransitions(t *testing.T) {
	now := time.Now()
	b := domain.Booking{Status: domain.BookingPending}

	require.NoError(t, b.Transition(domain.BookingConfirmed, now))
	require.NoError(t, b.Transition(domain.BookingCompleted, now))

	err := b.Transition(domain.BookingCancelled, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.BookingCompleted, b.Status)

	c := domain.Booking{Status: domain.BookingPending}
	assert.ErrorIs(t, c.Transition(domain.BookingCompleted, now), domain.ErrInvalidTransition)
	require.NoError(t, c.Transition(domain.BookingCancelled, now))
	assert.False(t, c.Status.Active())
}

func TestConflictError_MatchesSentinel(t *testing.T) {
	ivs := []domain.Interval{{Start: 1, End: 3, State: domain.StateBlocked}}
	var err error = &domain.ConflictError{Ranges: ivs}
	wrapped := errors.Join(errors.New("create booking"), err)

	assert.ErrorIs(t, wrapped, domain.ErrConflict)
	assert.Equal(t, ivs, domain.ConflictRanges(wrapped))
	assert.True(t, domain.IsConflict(wrapped))
	assert.False(t, domain.IsNotFound(wrapped))
}
