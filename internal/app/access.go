package app

import (
	"context"
	"fmt"

	"hostel_availability/internal/domain"
)

// Access decides whether a principal may act on a hostel, room or booking.
// Admins pass every check.
type Access struct {
	store domain.CalendarStore
}

func NewAccess(s domain.CalendarStore) *Access { return &Access{store: s} }

func (a *Access) Hostel(ctx context.Context, p domain.Principal, hostelID int64) error {
	h, err := a.store.Hostel(ctx, hostelID)
	if err != nil {
		return err
	}
	if p.IsAdmin() || (p.CanManage() && h.HostID == p.Subject) {
		return nil
	}
	return fmt.Errorf("hostel %d: %w", hostelID, domain.ErrForbidden)
}

func (a *Access) Room(ctx context.Context, p domain.Principal, roomID int64) error {
	r, err := a.store.Room(ctx, roomID)
	if err != nil {
		return err
	}
	return a.Hostel(ctx, p, r.HostelID)
}

// Booking lets the guest, the hostel's host and admins through.
func (a *Access) Booking(ctx context.Context, p domain.Principal, b domain.Booking) error {
	if p.IsAdmin() || b.GuestID == p.Subject {
		return nil
	}
	return a.Hostel(ctx, p, b.HostelID)
}
