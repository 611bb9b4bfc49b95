package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hostel_availability/internal/domain"
)

// CatalogService mirrors hostels and rooms from the platform backend into the
// calendar store. New rooms start fully AVAILABLE; existing calendars are
// never touched.
type CatalogService struct {
	client domain.CatalogClient
	store  domain.CalendarStore
	cache  domain.Cache
}

func NewCatalogService(c domain.CatalogClient, s domain.CalendarStore, cache domain.Cache) *CatalogService {
	return &CatalogService{client: c, store: s, cache: cache}
}

// SyncHostel upserts one hostel and its rooms. A hostel the backend does not
// know is logged and skipped rather than failing the run.
func (s *CatalogService) SyncHostel(ctx context.Context, id int64) (int, error) {
	p, err := s.client.GetHostel(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Int64("hostel_id", id).Msg("catalog: hostel not found, skipped")
			return 0, nil
		}
		return 0, err
	}
	h, ok := mapHostel(p, id)
	if !ok {
		return 0, fmt.Errorf("catalog hostel %d: payload has no id", id)
	}
	if err := s.store.UpsertHostel(ctx, h); err != nil {
		return 0, err
	}

	raw, err := s.client.GetRooms(ctx, h.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	rooms := mapRooms(h.ID, raw)
	for _, r := range rooms {
		if err := s.store.UpsertRoom(ctx, r); err != nil {
			return 0, fmt.Errorf("upsert room %d: %w", r.ID, err)
		}
	}
	invalidateHorizon(ctx, s.cache, h.ID, domain.Today())
	log.Info().Int64("hostel_id", h.ID).Int("rooms", len(rooms)).Msg("catalog synced")
	return len(rooms), nil
}

// SyncResult totals a SyncAll run. Hostels never started because ctx ended
// count as failed.
type SyncResult struct {
	Rooms  int64
	Failed int64
}

// SyncAll runs SyncHostel for every id with at most workers in flight.
// Failures are logged and counted, never returned.
func (s *CatalogService) SyncAll(ctx context.Context, ids []int64, workers int) SyncResult {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg            sync.WaitGroup
		rooms, failed atomic.Int64
	)

	for i, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Int("skipped", len(ids)-i).Msg("catalog sync interrupted")
			failed.Add(int64(len(ids) - i))
			break
		}

		wg.Add(1)
		go func(hostelID int64) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := s.SyncHostel(ctx, hostelID)
			if err != nil {
				failed.Add(1)
				log.Warn().Int64("hostel_id", hostelID).Err(err).Msg("sync failed")
				return
			}
			rooms.Add(int64(n))
		}(id)
	}

	wg.Wait()
	return SyncResult{Rooms: rooms.Load(), Failed: failed.Load()}
}
