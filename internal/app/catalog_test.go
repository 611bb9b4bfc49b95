package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel_availability/internal/app"
	"hostel_availability/internal/domain"
	"hostel_availability/internal/storage/memory"
)

type fakeCatalog struct {
	hostels map[int64]map[string]any
	rooms   map[int64][]map[string]any
	err     error
}

func (f *fakeCatalog) GetHostel(ctx context.Context, id int64) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.hostels[id]
	if !ok {
		return nil, fmt.Errorf("catalog hostel %d: %w", id, domain.ErrNotFound)
	}
	return h, nil
}

func (f *fakeCatalog) GetRooms(ctx context.Context, hostelID int64) ([]map[string]any, error) {
	return f.rooms[hostelID], nil
}

func TestSyncHostel_UpsertsAndKeepsCalendars(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cat := &fakeCatalog{
		hostels: map[int64]map[string]any{
			5: {"id": float64(5), "owner": map[string]any{"id": float64(901)}, "hostel_name": "Harbour Beds"},
		},
		rooms: map[int64][]map[string]any{
			5: {
				{"room_id": "51", "beds": float64(4), "price_per_night": "18,50", "type": "dorm"},
				{"id": float64(52), "capacity": float64(2), "price_cents": float64(4200), "room_type": "private"},
				{"name": "no id here"},
			},
		},
	}
	svc := app.NewCatalogService(cat, st, nil)

	n, err := svc.SyncHostel(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	h, err := st.Hostel(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Hostel{ID: 5, HostID: "901", Name: "Harbour Beds"}, h)

	rooms, err := st.RoomsByHostel(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, domain.Room{ID: 51, HostelID: 5, Capacity: 4, PriceCents: 1850, RoomType: "dorm"}, rooms[0])
	assert.Equal(t, int64(4200), rooms[1].PriceCents)

	// a resync leaves existing calendars alone
	require.NoError(t, app.NewAvailabilityService(st, nil).Block(ctx, 51, rng(t, "2024-03-01", "2024-03-03"), ""))
	_, err = svc.SyncHostel(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StateBlocked, stateOn(t, st, 51, "2024-03-01"))
}

func TestSyncHostel_NotFoundIsSkipped(t *testing.T) {
	svc := app.NewCatalogService(&fakeCatalog{}, memory.New(), nil)
	n, err := svc.SyncHostel(context.Background(), 404)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncHostel_UpstreamErrorSurfaces(t *testing.T) {
	boom := errors.New("upstream 502")
	svc := app.NewCatalogService(&fakeCatalog{err: boom}, memory.New(), nil)
	_, err := svc.SyncHostel(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cat := &fakeCatalog{
		hostels: map[int64]map[string]any{
			1: {"id": float64(1), "host_id": "h1"},
			2: {"id": float64(2), "host_id": "h2"},
			3: {"id": float64(-3)},
		},
		rooms: map[int64][]map[string]any{
			1: {{"id": float64(11)}},
			2: {{"id": float64(21)}, {"id": float64(22)}},
		},
	}
	svc := app.NewCatalogService(cat, st, nil)

	// 404 is skipped, the id-less payload fails
	res := svc.SyncAll(ctx, []int64{1, 2, 3, 404}, 2)
	assert.Equal(t, app.SyncResult{Rooms: 3, Failed: 1}, res)

	rooms, err := st.RoomsByHostel(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
	_, err = st.Hostel(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	res = svc.SyncAll(cctx, []int64{1, 2}, 0)
	assert.Equal(t, app.SyncResult{Failed: 2}, res)
}

func TestAccess(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	acc := app.NewAccess(st)

	owner := domain.Principal{Subject: "host-1", Role: domain.RoleHost}
	other := domain.Principal{Subject: "host-2", Role: domain.RoleHost}
	admin := domain.Principal{Subject: "root", Role: domain.RoleAdmin}
	student := domain.Principal{Subject: "host-1", Role: domain.RoleStudent}

	assert.NoError(t, acc.Room(ctx, owner, 10))
	assert.NoError(t, acc.Room(ctx, admin, 10))
	assert.ErrorIs(t, acc.Room(ctx, other, 10), domain.ErrForbidden)
	assert.ErrorIs(t, acc.Hostel(ctx, student, hostelID), domain.ErrForbidden)
	assert.ErrorIs(t, acc.Room(ctx, owner, 99), domain.ErrNotFound)

	b := domain.Booking{ID: "b1", HostelID: hostelID, GuestID: "guest-9"}
	assert.NoError(t, acc.Booking(ctx, domain.Principal{Subject: "guest-9", Role: domain.RoleStudent}, b))
	assert.NoError(t, acc.Booking(ctx, owner, b))
	assert.ErrorIs(t, acc.Booking(ctx, other, b), domain.ErrForbidden)
}
