package domain

import "context"

// CalendarStore is the sole owner of room interval data. Readers get copies;
// writers go through InRoomTx, which serialises mutations per room and
// commits intervals, block ranges and booking rows together or not at all.
type CalendarStore interface {
	// Catalog
	UpsertHostel(ctx context.Context, h Hostel) error
	UpsertRoom(ctx context.Context, r Room) error
	Hostel(ctx context.Context, id int64) (Hostel, error)
	Room(ctx context.Context, id int64) (Room, error)
	RoomsByHostel(ctx context.Context, hostelID int64) ([]Room, error) // ascending id
	HostelsByHost(ctx context.Context, hostID string) ([]Hostel, error)

	// Read paths
	GetIntervals(ctx context.Context, roomID int64, window Range) ([]Interval, error)
	Booking(ctx context.Context, id string) (Booking, error)

	// Write path
	InRoomTx(ctx context.Context, roomID int64, fn func(tx RoomTx) error) error
}

// RoomTx is a locked view of one room. Nothing written through it is visible
// to other callers until the surrounding InRoomTx returns nil.
type RoomTx interface {
	Room() Room
	Intervals(ctx context.Context) ([]Interval, error) // sparse: non-AVAILABLE runs only
	ReplaceIntervals(ctx context.Context, ivs []Interval) error
	Blocks(ctx context.Context) ([]BlockRange, error)
	ReplaceBlocks(ctx context.Context, bs []BlockRange) error
	Booking(ctx context.Context, id string) (Booking, error)
	InsertBooking(ctx context.Context, b Booking) error
	UpdateBooking(ctx context.Context, b Booking) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishBooking(ctx context.Context, ev BookingEvent) error
}

// CatalogClient reads hostels and rooms from the platform backend.
type CatalogClient interface {
	GetHostel(ctx context.Context, id int64) (map[string]any, error)
	GetRooms(ctx context.Context, hostelID int64) ([]map[string]any, error)
}
