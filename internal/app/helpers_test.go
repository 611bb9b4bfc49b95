package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
	"hostel_availability/internal/storage/memory"
)

// ---- fixtures ----

const hostelID = int64(1)

func seed(t *testing.T, roomIDs ...int64) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.UpsertHostel(ctx, domain.Hostel{ID: hostelID, HostID: "host-1", Name: "Campus Lodge"}))
	for _, id := range roomIDs {
		require.NoError(t, st.UpsertRoom(ctx, domain.Room{ID: id, HostelID: hostelID, Capacity: 2, PriceCents: 2500, RoomType: "double"}))
	}
	return st
}

func day(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func rng(t *testing.T, from, to string) domain.Range {
	t.Helper()
	return domain.Range{Start: day(t, from), End: day(t, to)}
}

// stored returns the room's sparse intervals and checks the calendar invariant.
func stored(t *testing.T, st domain.CalendarStore, roomID int64) []domain.Interval {
	t.Helper()
	var ivs []domain.Interval
	require.NoError(t, st.InRoomTx(context.Background(), roomID, func(tx domain.RoomTx) error {
		var err error
		ivs, err = tx.Intervals(context.Background())
		return err
	}))
	require.NoError(t, rangeops.Validate(ivs))
	return ivs
}

func blocks(t *testing.T, st domain.CalendarStore, roomID int64) []domain.BlockRange {
	t.Helper()
	var bs []domain.BlockRange
	require.NoError(t, st.InRoomTx(context.Background(), roomID, func(tx domain.RoomTx) error {
		var err error
		bs, err = tx.Blocks(context.Background())
		return err
	}))
	return bs
}

// stateOn reads a single day's state through the public read path.
func stateOn(t *testing.T, st domain.CalendarStore, roomID int64, d string) domain.DayState {
	t.Helper()
	dd := day(t, d)
	ivs, err := st.GetIntervals(context.Background(), roomID, domain.Range{Start: dd, End: dd.AddDays(1)})
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	return ivs[0].State
}

// ---- fakes ----

// fakeCache round-trips values through JSON like the Redis cache does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.BookingEvent
	err    error
}

func (p *fakePublisher) PublishBooking(ctx context.Context, ev domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) types() []domain.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.BookingEventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func ptr[T any](v T) *T { return &v }
