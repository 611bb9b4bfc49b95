package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"hostel_availability/internal/adapters/observability"
	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
)

// AvailabilityService applies host-issued range operations (block, unblock,
// single-day and bulk toggles) to room calendars.
type AvailabilityService struct {
	store domain.CalendarStore
	cache domain.Cache
}

func NewAvailabilityService(s domain.CalendarStore, c domain.Cache) *AvailabilityService {
	return &AvailabilityService{store: s, cache: c}
}

// Block records a block range and marks its days BLOCKED. Days already BOOKED
// keep that state while their booking is active; the block takes over when
// the booking is cancelled.
func (s *AvailabilityService) Block(ctx context.Context, roomID int64, r domain.Range, reason string) error {
	return s.observe(ctx, "block", roomID, r, func(ctx context.Context, tx domain.RoomTx) error {
		return blockTx(ctx, tx, r, reason)
	})
}

// Unblock returns r to AVAILABLE and trims every block range it cuts. It
// refuses, leaving the calendar untouched, when any day in r is BOOKED.
func (s *AvailabilityService) Unblock(ctx context.Context, roomID int64, r domain.Range) error {
	return s.observe(ctx, "unblock", roomID, r, unblockTx(r))
}

// SetDay toggles one day: available=false blocks it without a reason,
// available=true unblocks it.
func (s *AvailabilityService) SetDay(ctx context.Context, roomID int64, d domain.Date, available bool) error {
	r := domain.Range{Start: d, End: d.AddDays(1)}
	if available {
		return s.observe(ctx, "set_day", roomID, r, unblockTx(r))
	}
	return s.observe(ctx, "set_day", roomID, r, func(ctx context.Context, tx domain.RoomTx) error {
		return blockTx(ctx, tx, r, "")
	})
}

type BulkResult struct {
	Index int    `json:"index"`
	Item  string `json:"item"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BulkUpdate applies each item on its own: a single "YYYY-MM-DD" day or a
// "YYYY-MM-DD/YYYY-MM-DD" half-open range. One bad item never undoes the
// items before it; every outcome is reported.
func (s *AvailabilityService) BulkUpdate(ctx context.Context, roomID int64, items []string, available bool) ([]BulkResult, error) {
	if _, err := s.store.Room(ctx, roomID); err != nil {
		return nil, err
	}
	out := make([]BulkResult, 0, len(items))
	for i, raw := range items {
		res := BulkResult{Index: i, Item: raw, OK: true}
		err := s.bulkItem(ctx, roomID, raw, available)
		if err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *AvailabilityService) bulkItem(ctx context.Context, roomID int64, raw string, available bool) error {
	r, err := parseBulkItem(raw)
	if err != nil {
		observability.ObserveCalendar("bulk_item", outcome(err))
		return err
	}
	if available {
		return s.observe(ctx, "bulk_item", roomID, r, unblockTx(r))
	}
	return s.observe(ctx, "bulk_item", roomID, r, func(ctx context.Context, tx domain.RoomTx) error {
		return blockTx(ctx, tx, r, "")
	})
}

func parseBulkItem(raw string) (domain.Range, error) {
	if start, end, ok := strings.Cut(raw, "/"); ok {
		return domain.ParseRange(start, end)
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Range{}, err
	}
	return domain.Range{Start: d, End: d.AddDays(1)}, nil
}

// observe validates r, runs the mutation in a room transaction, evicts cached
// calendars and records the outcome. Zero-length ranges are a no-op.
func (s *AvailabilityService) observe(ctx context.Context, op string, roomID int64, r domain.Range, fn func(context.Context, domain.RoomTx) error) error {
	if err := ValidateWindow(r); err != nil {
		observability.ObserveCalendar(op, outcome(err))
		return err
	}
	if r.Empty() {
		return nil
	}
	var hostelID int64
	err := s.store.InRoomTx(ctx, roomID, func(tx domain.RoomTx) error {
		hostelID = tx.Room().HostelID
		return fn(ctx, tx)
	})
	observability.ObserveCalendar(op, outcome(err))
	if err != nil {
		reportInvariant(err, roomID, op)
		return err
	}
	invalidateCalendars(ctx, s.cache, hostelID, r)
	log.Debug().Str("op", op).Int64("room_id", roomID).Str("range", r.String()).Msg("calendar updated")
	return nil
}

func blockTx(ctx context.Context, tx domain.RoomTx, r domain.Range, reason string) error {
	ivs, err := tx.Intervals(ctx)
	if err != nil {
		return err
	}
	blocks, err := tx.Blocks(ctx)
	if err != nil {
		return err
	}
	next := rangeops.Apply(ivs, r, domain.StateBlocked)
	for _, iv := range rangeops.Overlapping(ivs, r) {
		if iv.State == domain.StateBooked {
			next = rangeops.Apply(next, iv.Range(), domain.StateBooked)
		}
	}
	if err := tx.ReplaceIntervals(ctx, next); err != nil {
		return err
	}
	return tx.ReplaceBlocks(ctx, addBlock(blocks, tx.Room().ID, r, strings.TrimSpace(reason)))
}

// addBlock records r, folding in every block with the same reason that it
// overlaps or touches. The merged block keeps the first absorbed ID and slot.
func addBlock(bs []domain.BlockRange, roomID int64, r domain.Range, reason string) []domain.BlockRange {
	nb := domain.BlockRange{RoomID: roomID, Range: r, Reason: reason}
	bs = slices.Clone(bs)
	at := len(bs)
	for {
		i := slices.IndexFunc(bs, func(b domain.BlockRange) bool {
			return b.Reason == reason && b.Range.Start <= nb.Range.End && nb.Range.Start <= b.Range.End
		})
		if i < 0 {
			break
		}
		b := bs[i]
		if nb.ID == 0 {
			nb.ID = b.ID
		}
		nb.Range = domain.Range{Start: min(nb.Range.Start, b.Range.Start), End: max(nb.Range.End, b.Range.End)}
		bs = slices.Delete(bs, i, i+1)
		at = min(at, i)
	}
	return slices.Insert(bs, min(at, len(bs)), nb)
}

func unblockTx(r domain.Range) func(context.Context, domain.RoomTx) error {
	return func(ctx context.Context, tx domain.RoomTx) error {
		ivs, err := tx.Intervals(ctx)
		if err != nil {
			return err
		}
		var booked []domain.Interval
		for _, iv := range rangeops.Overlapping(ivs, r) {
			if iv.State == domain.StateBooked {
				booked = append(booked, iv)
			}
		}
		if len(booked) > 0 {
			return fmt.Errorf("unblock %s: %w", r, &domain.ConflictError{Ranges: booked})
		}
		blocks, err := tx.Blocks(ctx)
		if err != nil {
			return err
		}
		if err := tx.ReplaceIntervals(ctx, rangeops.Apply(ivs, r, domain.StateAvailable)); err != nil {
			return err
		}
		return tx.ReplaceBlocks(ctx, rangeops.SubtractBlocks(blocks, r))
	}
}
