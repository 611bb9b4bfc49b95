package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hostel_availability/internal/adapters/observability"
	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
)

// BookingService creates bookings and drives them through their lifecycle.
// Calendar days and the booking row always change in the same room
// transaction.
type BookingService struct {
	store domain.CalendarStore
	cache domain.Cache
	pub   domain.EventPublisher

	now   func() time.Time
	newID func() string
}

func NewBookingService(s domain.CalendarStore, c domain.Cache, p domain.EventPublisher) *BookingService {
	return &BookingService{
		store: s,
		cache: c,
		pub:   p,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Create books req.Stay. With a room id only that room is tried; otherwise the
// hostel's rooms are tried in ascending id order until one succeeds.
func (s *BookingService) Create(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	b, err := s.create(ctx, req)
	observability.ObserveBooking("create", outcome(err))
	return b, err
}

func (s *BookingService) create(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	if err := ValidateStay(req.Stay); err != nil {
		return domain.Booking{}, err
	}
	if strings.TrimSpace(req.GuestID) == "" {
		return domain.Booking{}, fmt.Errorf("%w: guest is required", domain.ErrInvalidRange)
	}

	if req.RoomID != nil {
		room, err := s.store.Room(ctx, *req.RoomID)
		if err != nil {
			return domain.Booking{}, err
		}
		if req.HostelID != 0 && room.HostelID != req.HostelID {
			return domain.Booking{}, fmt.Errorf("room %d in hostel %d: %w", room.ID, req.HostelID, domain.ErrNotFound)
		}
		return s.bookRoom(ctx, room.ID, req)
	}

	rooms, err := s.store.RoomsByHostel(ctx, req.HostelID)
	if err != nil {
		return domain.Booking{}, err
	}
	for _, room := range rooms {
		b, err := s.bookRoom(ctx, room.ID, req)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Booking{}, err
		}
	}
	return domain.Booking{}, fmt.Errorf("hostel %d %s: %w", req.HostelID, req.Stay, domain.ErrNoRoomAvailable)
}

func (s *BookingService) bookRoom(ctx context.Context, roomID int64, req domain.BookingRequest) (domain.Booking, error) {
	var b domain.Booking
	err := s.store.InRoomTx(ctx, roomID, func(tx domain.RoomTx) error {
		ivs, err := tx.Intervals(ctx)
		if err != nil {
			return err
		}
		if chk := Evaluate(roomID, ivs, req.Stay); !chk.Available {
			return fmt.Errorf("room %d %s: %w", roomID, req.Stay, &domain.ConflictError{Ranges: chk.ConflictingRanges})
		}
		if err := tx.ReplaceIntervals(ctx, rangeops.Apply(ivs, req.Stay, domain.StateBooked)); err != nil {
			return err
		}
		now := s.now().UTC()
		b = domain.Booking{
			ID:        s.newID(),
			RoomID:    roomID,
			HostelID:  tx.Room().HostelID,
			GuestID:   req.GuestID,
			Range:     req.Stay,
			Status:    domain.BookingPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.InsertBooking(ctx, b)
	})
	if err != nil {
		reportInvariant(err, roomID, "book")
		if errors.Is(err, domain.ErrConflict) {
			log.Info().Int64("room_id", roomID).Str("stay", req.Stay.String()).Msg("booking conflict")
		}
		return domain.Booking{}, err
	}
	s.afterCommit(ctx, domain.EventBookingCreated, b)
	return b, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (domain.Booking, error) {
	return s.store.Booking(ctx, id)
}

// Cancel releases the stay. Days still claimed by a block range go back to
// BLOCKED; the rest become AVAILABLE.
func (s *BookingService) Cancel(ctx context.Context, id string) (domain.Booking, error) {
	b, err := s.transition(ctx, id, domain.BookingCancelled, func(ctx context.Context, tx domain.RoomTx, b domain.Booking) error {
		ivs, err := tx.Intervals(ctx)
		if err != nil {
			return err
		}
		for _, iv := range rangeops.Dense(ivs, b.Range) {
			if iv.State != domain.StateBooked {
				return domain.Invariant("booking %s: day range %s is %s, want BOOKED", b.ID, iv.Range(), iv.State)
			}
		}
		blocks, err := tx.Blocks(ctx)
		if err != nil {
			return err
		}
		return tx.ReplaceIntervals(ctx, rangeops.Release(ivs, b.Range, blocks))
	})
	observability.ObserveBooking("cancel", outcome(err))
	return b, err
}

func (s *BookingService) Confirm(ctx context.Context, id string) (domain.Booking, error) {
	b, err := s.transition(ctx, id, domain.BookingConfirmed, nil)
	observability.ObserveBooking("confirm", outcome(err))
	return b, err
}

func (s *BookingService) Complete(ctx context.Context, id string) (domain.Booking, error) {
	b, err := s.transition(ctx, id, domain.BookingCompleted, nil)
	observability.ObserveBooking("complete", outcome(err))
	return b, err
}

var transitionEvents = map[domain.BookingStatus]domain.BookingEventType{
	domain.BookingConfirmed: domain.EventBookingConfirmed,
	domain.BookingCancelled: domain.EventBookingCancelled,
	domain.BookingCompleted: domain.EventBookingCompleted,
}

// transition loads the booking's room, moves the booking to the target
// status and runs calendar, if any, in the same transaction.
func (s *BookingService) transition(ctx context.Context, id string, to domain.BookingStatus,
	calendar func(context.Context, domain.RoomTx, domain.Booking) error) (domain.Booking, error) {
	cur, err := s.store.Booking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	var out domain.Booking
	err = s.store.InRoomTx(ctx, cur.RoomID, func(tx domain.RoomTx) error {
		b, err := tx.Booking(ctx, id)
		if err != nil {
			return err
		}
		if err := b.Transition(to, s.now()); err != nil {
			return err
		}
		if calendar != nil {
			if err := calendar(ctx, tx, b); err != nil {
				return err
			}
		}
		out = b
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		reportInvariant(err, cur.RoomID, string(to))
		return domain.Booking{}, err
	}
	s.afterCommit(ctx, transitionEvents[to], out)
	return out, nil
}

func (s *BookingService) afterCommit(ctx context.Context, t domain.BookingEventType, b domain.Booking) {
	if b.Status == domain.BookingPending || b.Status == domain.BookingCancelled {
		invalidateCalendars(ctx, s.cache, b.HostelID, b.Range)
	}
	log.Debug().Str("booking_id", b.ID).Int64("room_id", b.RoomID).Str("status", string(b.Status)).Msg("booking committed")
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishBooking(ctx, domain.NewBookingEvent(t, b)); err != nil {
		log.Warn().Err(err).Str("booking_id", b.ID).Str("event", string(t)).Msg("publish booking event failed")
	}
}
