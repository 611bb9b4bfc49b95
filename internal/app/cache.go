package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"hostel_availability/internal/domain"
)

func calendarKey(hostelID int64, ym domain.YearMonth) string {
	return fmt.Sprintf("calendar:%d:%s", hostelID, ym)
}

// invalidateCalendars evicts every cached month grid of the hostel touched by r.
func invalidateCalendars(ctx context.Context, c domain.Cache, hostelID int64, r domain.Range) {
	if c == nil {
		return
	}
	for _, ym := range r.Months() {
		key := calendarKey(hostelID, ym)
		if err := c.Del(ctx, key); err != nil {
			// the version stamp on the entry still keeps readers off it
			log.Warn().Err(err).Str("key", key).Msg("calendar eviction failed")
		}
	}
}

// invalidateHorizon evicts the hostel's month grids from last month through the
// query horizon; used when the room set itself changes.
func invalidateHorizon(ctx context.Context, c domain.Cache, hostelID int64, today domain.Date) {
	from := today.YearMonth().Range().Start.AddDays(-1).YearMonth().Range().Start
	invalidateCalendars(ctx, c, hostelID, domain.Range{Start: from, End: today.AddYears(MaxHorizonYears)})
}
