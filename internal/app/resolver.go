package app

import (
	"context"
	"fmt"

	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
)

// Resolver answers whether a stay can be booked. It only reads; the booking
// path re-runs Evaluate inside the room transaction before writing.
type Resolver struct {
	store domain.CalendarStore
}

func NewResolver(s domain.CalendarStore) *Resolver { return &Resolver{store: s} }

// Evaluate checks stay against a room's sparse intervals. Every stored run
// is non-AVAILABLE, so any overlap is a conflict.
func Evaluate(roomID int64, ivs []domain.Interval, stay domain.Range) domain.AvailabilityCheck {
	conflicts := rangeops.Overlapping(ivs, stay)
	return domain.AvailabilityCheck{
		RoomID:            roomID,
		Available:         len(conflicts) == 0,
		ConflictingRanges: conflicts,
	}
}

func (r *Resolver) CheckAvailability(ctx context.Context, roomID int64, stay domain.Range) (domain.AvailabilityCheck, error) {
	if err := ValidateStay(stay); err != nil {
		return domain.AvailabilityCheck{}, err
	}
	dense, err := r.store.GetIntervals(ctx, roomID, stay)
	if err != nil {
		return domain.AvailabilityCheck{}, err
	}
	conflicts := []domain.Interval{}
	for _, iv := range dense {
		if iv.State != domain.StateAvailable {
			conflicts = append(conflicts, iv)
		}
	}
	return domain.AvailabilityCheck{RoomID: roomID, Available: len(conflicts) == 0, ConflictingRanges: conflicts}, nil
}

// CheckHostel returns the first room, by ascending id, free for the whole stay.
func (r *Resolver) CheckHostel(ctx context.Context, hostelID int64, stay domain.Range) (domain.AvailabilityCheck, error) {
	if err := ValidateStay(stay); err != nil {
		return domain.AvailabilityCheck{}, err
	}
	rooms, err := r.store.RoomsByHostel(ctx, hostelID)
	if err != nil {
		return domain.AvailabilityCheck{}, err
	}
	for _, room := range rooms {
		chk, err := r.CheckAvailability(ctx, room.ID, stay)
		if err != nil {
			return domain.AvailabilityCheck{}, err
		}
		if chk.Available {
			return chk, nil
		}
	}
	return domain.AvailabilityCheck{}, fmt.Errorf("hostel %d %s: %w", hostelID, stay, domain.ErrNoRoomAvailable)
}

// CheckRoomInHostel is CheckAvailability for a room that must belong to hostelID.
func (r *Resolver) CheckRoomInHostel(ctx context.Context, hostelID, roomID int64, stay domain.Range) (domain.AvailabilityCheck, error) {
	if err := ValidateStay(stay); err != nil {
		return domain.AvailabilityCheck{}, err
	}
	room, err := r.store.Room(ctx, roomID)
	if err != nil {
		return domain.AvailabilityCheck{}, err
	}
	if hostelID != 0 && room.HostelID != hostelID {
		return domain.AvailabilityCheck{}, fmt.Errorf("room %d in hostel %d: %w", roomID, hostelID, domain.ErrNotFound)
	}
	return r.CheckAvailability(ctx, roomID, stay)
}
