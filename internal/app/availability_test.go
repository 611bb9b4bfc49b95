package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel_availability/internal/app"
	"hostel_availability/internal/domain"
)

func TestBlock_SplitsAndMerges(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)

	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-03-10", "2024-03-15"), "maintenance"))
	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-03-15", "2024-03-18"), ""))

	ivs := stored(t, st, 10)
	require.Len(t, ivs, 1)
	assert.Equal(t, rng(t, "2024-03-10", "2024-03-18"), ivs[0].Range())
	assert.Equal(t, domain.StateBlocked, ivs[0].State)

	bs := blocks(t, st, 10)
	require.Len(t, bs, 2)
	assert.Equal(t, "maintenance", bs[0].Reason)
	assert.NotZero(t, bs[0].ID)
	assert.NotEqual(t, bs[0].ID, bs[1].ID)
}

func TestBlock_KeepsBookedDays(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)
	bk := app.NewBookingService(st, nil, nil)

	b, err := bk.Create(ctx, domain.BookingRequest{HostelID: hostelID, RoomID: ptr(int64(10)), GuestID: "g1", Stay: rng(t, "2024-03-12", "2024-03-14")})
	require.NoError(t, err)
	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-03-10", "2024-03-20"), "renovation"))

	assert.Equal(t, domain.StateBlocked, stateOn(t, st, 10, "2024-03-11"))
	assert.Equal(t, domain.StateBooked, stateOn(t, st, 10, "2024-03-12"))
	assert.Equal(t, domain.StateBooked, stateOn(t, st, 10, "2024-03-13"))
	assert.Equal(t, domain.StateBlocked, stateOn(t, st, 10, "2024-03-14"))
	stored(t, st, 10)

	// the block takes over once the booking is gone
	_, err = bk.Cancel(ctx, b.ID)
	require.NoError(t, err)
	ivs := stored(t, st, 10)
	require.Len(t, ivs, 1)
	assert.Equal(t, domain.Interval{Start: day(t, "2024-03-10"), End: day(t, "2024-03-20"), State: domain.StateBlocked}, ivs[0])
}

func TestUnblock_OverBookedDayConflictsAndLeavesCalendar(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)
	bk := app.NewBookingService(st, nil, nil)

	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-03-01", "2024-03-05"), ""))
	_, err := bk.Create(ctx, domain.BookingRequest{HostelID: hostelID, GuestID: "g1", Stay: rng(t, "2024-03-06", "2024-03-08")})
	require.NoError(t, err)
	before := stored(t, st, 10)
	beforeBlocks := blocks(t, st, 10)

	err = svc.Unblock(ctx, 10, rng(t, "2024-03-01", "2024-03-10"))
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []domain.Interval{{Start: day(t, "2024-03-06"), End: day(t, "2024-03-08"), State: domain.StateBooked}}, domain.ConflictRanges(err))

	assert.Equal(t, before, stored(t, st, 10))
	assert.Equal(t, beforeBlocks, blocks(t, st, 10))
}

func TestUnblock_TrimsBlockRanges(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)

	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-03-01", "2024-03-11"), "exams"))
	require.NoError(t, svc.Unblock(ctx, 10, rng(t, "2024-03-04", "2024-03-06")))

	ivs := stored(t, st, 10)
	assert.Equal(t, []domain.Interval{
		{Start: day(t, "2024-03-01"), End: day(t, "2024-03-04"), State: domain.StateBlocked},
		{Start: day(t, "2024-03-06"), End: day(t, "2024-03-11"), State: domain.StateBlocked},
	}, ivs)
	bs := blocks(t, st, 10)
	require.Len(t, bs, 2)
	assert.Equal(t, rng(t, "2024-03-01", "2024-03-04"), bs[0].Range)
	assert.Equal(t, rng(t, "2024-03-06", "2024-03-11"), bs[1].Range)
	assert.Equal(t, "exams", bs[1].Reason)
	assert.NotEqual(t, bs[0].ID, bs[1].ID)
}

func TestSetDay_TogglesSingleDay(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)

	require.NoError(t, svc.SetDay(ctx, 10, day(t, "2024-05-01"), false))
	assert.Equal(t, domain.StateBlocked, stateOn(t, st, 10, "2024-05-01"))
	assert.Equal(t, domain.StateAvailable, stateOn(t, st, 10, "2024-05-02"))

	require.NoError(t, svc.SetDay(ctx, 10, day(t, "2024-05-01"), true))
	assert.Empty(t, stored(t, st, 10))
	assert.Empty(t, blocks(t, st, 10))
}

func TestBlock_RepeatedBlocksDoNotPileUp(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)

	require.NoError(t, svc.SetDay(ctx, 10, day(t, "2024-05-01"), false))
	require.NoError(t, svc.SetDay(ctx, 10, day(t, "2024-05-01"), false))
	bs := blocks(t, st, 10)
	require.Len(t, bs, 1)
	first := bs[0].ID

	// consecutive days from a bulk call join the same block
	res, err := svc.BulkUpdate(ctx, 10, []string{"2024-05-02", "2024-05-03", "2024-05-02/2024-05-04"}, false)
	require.NoError(t, err)
	for _, r := range res {
		assert.True(t, r.OK, r.Item)
	}
	bs = blocks(t, st, 10)
	require.Len(t, bs, 1)
	assert.Equal(t, first, bs[0].ID)
	assert.Equal(t, rng(t, "2024-05-01", "2024-05-04"), bs[0].Range)

	// a block inside an existing one with the same reason adds nothing
	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-05-02", "2024-05-03"), " "))
	assert.Len(t, blocks(t, st, 10), 1)

	// another reason stays its own record
	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-05-03", "2024-05-06"), "painting"))
	bs = blocks(t, st, 10)
	require.Len(t, bs, 2)
	assert.Equal(t, rng(t, "2024-05-01", "2024-05-04"), bs[0].Range)
	assert.Equal(t, "painting", bs[1].Reason)

	// a block bridging two same-reason blocks folds them into one
	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-05-08", "2024-05-09"), ""))
	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-05-04", "2024-05-08"), ""))
	bs = blocks(t, st, 10)
	require.Len(t, bs, 2)
	assert.Equal(t, first, bs[0].ID)
	assert.Equal(t, rng(t, "2024-05-01", "2024-05-09"), bs[0].Range)
	assert.Len(t, stored(t, st, 10), 1)
}

func TestMutations_Validation(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)

	err := svc.Block(ctx, 10, domain.Range{Start: day(t, "2024-03-10"), End: day(t, "2024-03-01")}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	err = svc.Block(ctx, 10, rng(t, "2024-01-01", "2027-01-01"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	// zero length is a no-op, even for an unknown room
	assert.NoError(t, svc.Block(ctx, 99, rng(t, "2024-03-01", "2024-03-01"), ""))

	assert.ErrorIs(t, svc.Unblock(ctx, 99, rng(t, "2024-03-01", "2024-03-02")), domain.ErrNotFound)
	assert.Empty(t, stored(t, st, 10))
}

func TestBulkUpdate_OneInvalidItem(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	cache := &fakeCache{}
	svc := app.NewAvailabilityService(st, cache)

	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-04-01", "2024-04-30"), ""))

	res, err := svc.BulkUpdate(ctx, 10, []string{"2024-04-03", "2024-02-30", "2024-04-10/2024-04-12"}, true)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.True(t, res[0].OK)
	assert.False(t, res[1].OK)
	assert.Contains(t, res[1].Error, "invalid range")
	assert.True(t, res[2].OK)
	assert.Equal(t, 2, res[2].Index)

	assert.Equal(t, domain.StateAvailable, stateOn(t, st, 10, "2024-04-03"))
	assert.Equal(t, domain.StateAvailable, stateOn(t, st, 10, "2024-04-10"))
	assert.Equal(t, domain.StateAvailable, stateOn(t, st, 10, "2024-04-11"))
	assert.Equal(t, domain.StateBlocked, stateOn(t, st, 10, "2024-04-12"))
	assert.Equal(t, domain.StateBlocked, stateOn(t, st, 10, "2024-04-04"))
	stored(t, st, 10)
	assert.Contains(t, cache.dels, "calendar:1:2024-04")
}

func TestBulkUpdate_BookedItemFailsAlone(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	svc := app.NewAvailabilityService(st, nil)
	bk := app.NewBookingService(st, nil, nil)

	_, err := bk.Create(ctx, domain.BookingRequest{HostelID: hostelID, GuestID: "g1", Stay: rng(t, "2024-04-05", "2024-04-06")})
	require.NoError(t, err)

	res, err := svc.BulkUpdate(ctx, 10, []string{"2024-04-04", "2024-04-05", "2024-04-06"}, false)
	require.NoError(t, err)
	assert.True(t, res[0].OK)
	assert.True(t, res[1].OK, "blocking a booked day records the block and keeps BOOKED")
	assert.True(t, res[2].OK)
	assert.Equal(t, domain.StateBooked, stateOn(t, st, 10, "2024-04-05"))

	res, err = svc.BulkUpdate(ctx, 10, []string{"2024-04-04", "2024-04-05", "2024-04-06"}, true)
	require.NoError(t, err)
	assert.True(t, res[0].OK)
	assert.False(t, res[1].OK)
	assert.True(t, res[2].OK)
	assert.Equal(t, domain.StateAvailable, stateOn(t, st, 10, "2024-04-04"))
	assert.Equal(t, domain.StateAvailable, stateOn(t, st, 10, "2024-04-06"))
}

func TestBulkUpdate_UnknownRoom(t *testing.T) {
	st := seed(t)
	svc := app.NewAvailabilityService(st, nil)
	_, err := svc.BulkUpdate(context.Background(), 7, []string{"2024-04-04"}, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMutations_InvalidateTouchedMonths(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 10)
	cache := &fakeCache{}
	svc := app.NewAvailabilityService(st, cache)

	require.NoError(t, svc.Block(ctx, 10, rng(t, "2024-01-30", "2024-03-02"), ""))
	assert.Equal(t, []string{"calendar:1:2024-01", "calendar:1:2024-02", "calendar:1:2024-03"}, cache.dels)
}
