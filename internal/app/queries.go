package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
)

// DefaultWindowDays is the listing window used when the caller gives no dates.
const DefaultWindowDays = 30

type QueryService struct {
	store    domain.CalendarStore
	cache    domain.Cache
	cacheTTL time.Duration
	fanout   int
	sf       singleflight.Group
}

func NewQueryService(s domain.CalendarStore, c domain.Cache, ttl time.Duration, fanout int) *QueryService {
	if fanout <= 0 {
		fanout = 8
	}
	return &QueryService{store: s, cache: c, cacheTTL: ttl, fanout: fanout}
}

// DefaultWindow is [today, today+30).
func DefaultWindow(today domain.Date) domain.Range {
	return domain.Range{Start: today, End: today.AddDays(DefaultWindowDays)}
}

func (s *QueryService) GetRoomAvailability(ctx context.Context, roomID int64, w domain.Range) (domain.RoomAvailability, error) {
	if err := ValidateWindow(w); err != nil {
		return domain.RoomAvailability{}, err
	}
	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return domain.RoomAvailability{}, err
	}
	ivs, err := s.store.GetIntervals(ctx, roomID, w)
	if err != nil {
		return domain.RoomAvailability{}, err
	}
	return domain.RoomAvailability{Room: room, Window: w, Intervals: ivs}, nil
}

func (s *QueryService) GetHostelAvailability(ctx context.Context, hostelID int64, w domain.Range) ([]domain.RoomAvailability, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	rooms, err := s.store.RoomsByHostel(ctx, hostelID)
	if err != nil {
		return nil, err
	}
	return s.roomsAvailability(ctx, rooms, w)
}

// GetHostAvailability lists every room of every hostel owned by hostID.
func (s *QueryService) GetHostAvailability(ctx context.Context, hostID string, w domain.Range) ([]domain.RoomAvailability, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	hostels, err := s.store.HostelsByHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	var rooms []domain.Room
	for _, h := range hostels {
		rs, err := s.store.RoomsByHostel(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, rs...)
	}
	return s.roomsAvailability(ctx, rooms, w)
}

func (s *QueryService) roomsAvailability(ctx context.Context, rooms []domain.Room, w domain.Range) ([]domain.RoomAvailability, error) {
	out := make([]domain.RoomAvailability, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, room := range rooms {
		i, room := i, room
		g.Go(func() error {
			ivs, err := s.store.GetIntervals(gctx, room.ID, w)
			if err != nil {
				return err
			}
			out[i] = domain.RoomAvailability{Room: room, Window: w, Intervals: ivs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// calendarEntry is the cached form of a month grid. Stamp is the room
// versions the grid was read at; an entry whose stamp is behind the store is
// a miss.
type calendarEntry struct {
	Stamp    string                `json:"stamp"`
	Calendar domain.HostelCalendar `json:"calendar"`
}

// versionStamp changes whenever a room of the hostel commits a write or a
// room is added. Room versions only grow.
func versionStamp(rooms []domain.Room) string {
	var sum int64
	for _, r := range rooms {
		sum += r.Version
	}
	return fmt.Sprintf("%d.%d", len(rooms), sum)
}

// GetCalendar returns the month grid of a hostel. Concurrent misses that saw
// the same room versions share one store read.
func (s *QueryService) GetCalendar(ctx context.Context, hostelID int64, ym domain.YearMonth) (domain.HostelCalendar, error) {
	rooms, err := s.store.RoomsByHostel(ctx, hostelID)
	if err != nil {
		return domain.HostelCalendar{}, err
	}
	stamp := versionStamp(rooms)
	key := calendarKey(hostelID, ym)
	if s.cache != nil {
		var e calendarEntry
		if ok, _ := s.cache.Get(ctx, key, &e); ok && e.Stamp == stamp {
			return e.Calendar, nil
		}
	}
	v, err, _ := s.sf.Do(key+"@"+stamp, func() (any, error) {
		// the build is shared; one caller going away must not fail the others
		bctx := context.WithoutCancel(ctx)
		hc, err := s.buildCalendar(bctx, hostelID, rooms, ym)
		if err != nil {
			return nil, err
		}
		s.storeCalendar(bctx, key, stamp, hc)
		return hc, nil
	})
	if err != nil {
		return domain.HostelCalendar{}, err
	}
	return copyCalendar(v.(domain.HostelCalendar)), nil
}

// storeCalendar caches hc unless a room of the hostel committed while it was
// being built.
func (s *QueryService) storeCalendar(ctx context.Context, key, stamp string, hc domain.HostelCalendar) {
	if s.cache == nil {
		return
	}
	rooms, err := s.store.RoomsByHostel(ctx, hc.HostelID)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("calendar not cached")
		return
	}
	if now := versionStamp(rooms); now != stamp {
		log.Debug().Str("key", key).Str("built_at", stamp).Str("now", now).Msg("calendar changed during build, not cached")
		return
	}
	if err := s.cache.Set(ctx, key, calendarEntry{Stamp: stamp, Calendar: hc}, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("calendar cache set failed")
	}
}

func (s *QueryService) buildCalendar(ctx context.Context, hostelID int64, rooms []domain.Room, ym domain.YearMonth) (domain.HostelCalendar, error) {
	month := ym.Range()
	rows := make([]domain.RoomCalendar, len(rooms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, room := range rooms {
		i, room := i, room
		g.Go(func() error {
			ivs, err := s.store.GetIntervals(gctx, room.ID, month)
			if err != nil {
				return err
			}
			rows[i] = domain.RoomCalendar{RoomID: room.ID, Days: rangeops.Cells(ivs, month)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.HostelCalendar{}, err
	}
	return domain.HostelCalendar{HostelID: hostelID, Month: ym.String(), Rooms: rows}, nil
}

// copyCalendar detaches the result from the value shared by singleflight callers.
func copyCalendar(in domain.HostelCalendar) domain.HostelCalendar {
	out := in
	out.Rooms = make([]domain.RoomCalendar, len(in.Rooms))
	for i, r := range in.Rooms {
		out.Rooms[i] = domain.RoomCalendar{RoomID: r.RoomID, Days: append([]domain.DayCell(nil), r.Days...)}
	}
	return out
}
