package domain

import (
	"fmt"
	"strings"
)

type DayState string

const (
	StateAvailable DayState = "AVAILABLE"
	StateBooked    DayState = "BOOKED"
	StateBlocked   DayState = "BLOCKED"
)

func ParseDayState(s string) (DayState, error) {
	switch st := DayState(strings.ToUpper(strings.TrimSpace(s))); st {
	case StateAvailable, StateBooked, StateBlocked:
		return st, nil
	}
	return "", fmt.Errorf("unknown day state %q", s)
}

// Interval is a run of consecutive days [Start, End) sharing one state.
type Interval struct {
	Start Date     `json:"start_date"`
	End   Date     `json:"end_date"`
	State DayState `json:"state"`
}

func (iv Interval) Range() Range { return Range{Start: iv.Start, End: iv.End} }

func (iv Interval) String() string {
	return fmt.Sprintf("%s%s", iv.State, iv.Range())
}

type Hostel struct {
	ID     int64  `json:"id"`
	HostID string `json:"host_id"`
	Name   string `json:"name"`
}

type Room struct {
	ID         int64  `json:"id"`
	HostelID   int64  `json:"hostel_id"`
	Capacity   int    `json:"capacity"`
	PriceCents int64  `json:"price_cents"`
	RoomType   string `json:"room_type"`
	Version    int64  `json:"version"`
}

// BlockRange is a host-owned hold on a room's days. It lives independently of
// bookings: days it covers return to BLOCKED when an overlapping booking ends.
type BlockRange struct {
	ID     int64  `json:"id"`
	RoomID int64  `json:"room_id"`
	Range  Range  `json:"range"`
	Reason string `json:"reason,omitempty"`
}

// RoomAvailability is a room with its dense intervals over a query window.
type RoomAvailability struct {
	Room      Room       `json:"room"`
	Window    Range      `json:"window"`
	Intervals []Interval `json:"intervals"`
}

type DayCell struct {
	Date  Date     `json:"date"`
	State DayState `json:"state"`
}

type RoomCalendar struct {
	RoomID int64     `json:"room_id"`
	Days   []DayCell `json:"days"`
}

// HostelCalendar is the month grid: one row of day cells per room.
type HostelCalendar struct {
	HostelID int64          `json:"hostel_id"`
	Month    string         `json:"year_month"`
	Rooms    []RoomCalendar `json:"rooms"`
}

// AvailabilityCheck is the answer to "can [check_in, check_out) be booked".
type AvailabilityCheck struct {
	RoomID            int64      `json:"room_id"`
	Available         bool       `json:"available"`
	ConflictingRanges []Interval `json:"conflicting_ranges"`
}
