// Package memory is an in-process CalendarStore. Mutations are serialised by
// a mutex per room and staged until the transaction function returns, so a
// failed or cancelled transaction leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
)

type Store struct {
	mu          sync.RWMutex
	hostels     map[int64]domain.Hostel
	rooms       map[int64]domain.Room
	intervals   map[int64][]domain.Interval
	blocks      map[int64][]domain.BlockRange
	bookings    map[string]domain.Booking
	nextBlockID int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

var _ domain.CalendarStore = (*Store)(nil)

func New() *Store {
	return &Store{
		hostels:   map[int64]domain.Hostel{},
		rooms:     map[int64]domain.Room{},
		intervals: map[int64][]domain.Interval{},
		blocks:    map[int64][]domain.BlockRange{},
		bookings:  map[string]domain.Booking{},
		locks:     map[int64]*sync.Mutex{},
	}
}

func (s *Store) UpsertHostel(ctx context.Context, h domain.Hostel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostels[h.ID] = h
	return nil
}

func (s *Store) UpsertRoom(ctx context.Context, r domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hostels[r.HostelID]; !ok {
		return fmt.Errorf("hostel %d: %w", r.HostelID, domain.ErrNotFound)
	}
	if cur, ok := s.rooms[r.ID]; ok {
		r.Version = cur.Version
	}
	s.rooms[r.ID] = r
	return nil
}

func (s *Store) Hostel(ctx context.Context, id int64) (domain.Hostel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hostels[id]
	if !ok {
		return domain.Hostel{}, fmt.Errorf("hostel %d: %w", id, domain.ErrNotFound)
	}
	return h, nil
}

func (s *Store) Room(ctx context.Context, id int64) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *Store) RoomsByHostel(ctx context.Context, hostelID int64) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.hostels[hostelID]; !ok {
		return nil, fmt.Errorf("hostel %d: %w", hostelID, domain.ErrNotFound)
	}
	out := []domain.Room{}
	for _, r := range s.rooms {
		if r.HostelID == hostelID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) HostelsByHost(ctx context.Context, hostID string) ([]domain.Hostel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Hostel{}
	for _, h := range s.hostels {
		if h.HostID == hostID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetIntervals(ctx context.Context, roomID int64, window domain.Range) ([]domain.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, domain.ErrNotFound)
	}
	return rangeops.Dense(s.intervals[roomID], window), nil
}

func (s *Store) Booking(ctx context.Context, id string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (s *Store) roomLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) InRoomTx(ctx context.Context, roomID int64, fn func(tx domain.RoomTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.Room(ctx, roomID)
	if err != nil {
		return err
	}
	tx := &roomTx{s: s, room: room, staged: map[string]domain.Booking{}}
	if err := fn(tx); err != nil {
		return err
	}
	// a caller that gave up before commit gets nothing written
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *roomTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := tx.room.ID
	if tx.ivsDirty {
		s.intervals[id] = tx.ivs
	}
	if tx.blocksDirty {
		for i := range tx.blocks {
			if tx.blocks[i].ID == 0 {
				s.nextBlockID++
				tx.blocks[i].ID = s.nextBlockID
			}
		}
		s.blocks[id] = tx.blocks
	}
	for bid, b := range tx.staged {
		s.bookings[bid] = b
	}
	r := s.rooms[id]
	r.Version++
	s.rooms[id] = r
}

type roomTx struct {
	s    *Store
	room domain.Room

	ivs         []domain.Interval
	ivsDirty    bool
	blocks      []domain.BlockRange
	blocksDirty bool
	staged      map[string]domain.Booking
}

func (t *roomTx) Room() domain.Room { return t.room }

func (t *roomTx) Intervals(ctx context.Context) ([]domain.Interval, error) {
	if t.ivsDirty {
		return append([]domain.Interval(nil), t.ivs...), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return append([]domain.Interval(nil), t.s.intervals[t.room.ID]...), nil
}

func (t *roomTx) ReplaceIntervals(ctx context.Context, ivs []domain.Interval) error {
	if err := rangeops.Validate(ivs); err != nil {
		return fmt.Errorf("room %d: %w", t.room.ID, err)
	}
	t.ivs = append([]domain.Interval(nil), ivs...)
	t.ivsDirty = true
	return nil
}

func (t *roomTx) Blocks(ctx context.Context) ([]domain.BlockRange, error) {
	if t.blocksDirty {
		return append([]domain.BlockRange(nil), t.blocks...), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return append([]domain.BlockRange(nil), t.s.blocks[t.room.ID]...), nil
}

func (t *roomTx) ReplaceBlocks(ctx context.Context, bs []domain.BlockRange) error {
	out := make([]domain.BlockRange, 0, len(bs))
	for _, b := range bs {
		if b.Range.Empty() {
			return domain.Invariant("room %d: empty block range %s", t.room.ID, b.Range)
		}
		b.RoomID = t.room.ID
		out = append(out, b)
	}
	t.blocks = out
	t.blocksDirty = true
	return nil
}

func (t *roomTx) Booking(ctx context.Context, id string) (domain.Booking, error) {
	if b, ok := t.staged[id]; ok {
		return b, nil
	}
	t.s.mu.RLock()
	b, ok := t.s.bookings[id]
	t.s.mu.RUnlock()
	if !ok || b.RoomID != t.room.ID {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (t *roomTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	if _, err := t.Booking(ctx, b.ID); err == nil {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	if b.RoomID != t.room.ID {
		return domain.Invariant("booking %s targets room %d inside room %d", b.ID, b.RoomID, t.room.ID)
	}
	t.staged[b.ID] = b
	return nil
}

func (t *roomTx) UpdateBooking(ctx context.Context, b domain.Booking) error {
	if _, err := t.Booking(ctx, b.ID); err != nil {
		return err
	}
	t.staged[b.ID] = b
	return nil
}
