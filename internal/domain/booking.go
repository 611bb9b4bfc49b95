package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// Active bookings own their days in the calendar.
func (s BookingStatus) Active() bool { return s == BookingPending || s == BookingConfirmed }

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, n := range bookingTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

type Booking struct {
	ID        string        `json:"id"`
	RoomID    int64         `json:"room_id"`
	HostelID  int64         `json:"hostel_id"`
	GuestID   string        `json:"guest_id"`
	Range     Range         `json:"range"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Transition moves the booking to the next status or returns ErrInvalidTransition.
func (b *Booking) Transition(to BookingStatus, now time.Time) error {
	if !b.Status.CanTransition(to) {
		return &TransitionError{From: b.Status, To: to}
	}
	b.Status = to
	b.UpdatedAt = now.UTC()
	return nil
}

type BookingRequest struct {
	HostelID int64
	RoomID   *int64
	GuestID  string
	Stay     Range
}

type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "booking.created"
	EventBookingConfirmed BookingEventType = "booking.confirmed"
	EventBookingCancelled BookingEventType = "booking.cancelled"
	EventBookingCompleted BookingEventType = "booking.completed"
)

type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	BookingID  string           `json:"booking_id"`
	RoomID     int64            `json:"room_id"`
	HostelID   int64            `json:"hostel_id"`
	GuestID    string           `json:"guest_id"`
	CheckIn    Date             `json:"check_in"`
	CheckOut   Date             `json:"check_out"`
	Status     BookingStatus    `json:"status"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewBookingEvent(t BookingEventType, b Booking) BookingEvent {
	return BookingEvent{
		Type:       t,
		BookingID:  b.ID,
		RoomID:     b.RoomID,
		HostelID:   b.HostelID,
		GuestID:    b.GuestID,
		CheckIn:    b.Range.Start,
		CheckOut:   b.Range.End,
		Status:     b.Status,
		OccurredAt: b.UpdatedAt,
	}
}
