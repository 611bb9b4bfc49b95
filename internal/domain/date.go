package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Date is a whole calendar day in UTC, stored as days since 1970-01-01.
type Date int32

func DateOf(t time.Time) Date {
	u := t.UTC()
	mid := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Date(mid.Unix() / 86400)
}

func NewDate(y int, m time.Month, d int) Date {
	return DateOf(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate accepts ISO YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: bad date %q", ErrInvalidRange, s)
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time { return time.Unix(int64(d)*86400, 0).UTC() }
func (d Date) String() string { return d.Time().Format(dateLayout) }
func (d Date) AddDays(n int) Date { return d + Date(n) }
func (d Date) YearMonth() YearMonth {
	t := d.Time()
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (d Date) AddYears(n int) Date { return DateOf(d.Time().AddDate(n, 0, 0)) }
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrInvalidRange)
	}
	return d.UnmarshalText([]byte(s))
}

// YearMonth identifies a calendar month (YYYY-MM).
type YearMonth struct {
	Year  int
	Month time.Month
}

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: bad month %q", ErrInvalidRange, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

// Range returns the month as a half-open range [first day, first day of next month).
func (ym YearMonth) Range() Range {
	first := NewDate(ym.Year, ym.Month, 1)
	return Range{Start: first, End: DateOf(first.Time().AddDate(0, 1, 0))}
}

// Range is a half-open span of days [Start, End).
type Range struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

func NewRange(start, end Date) (Range, error) {
	if end < start {
		return Range{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, end, start)
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses two ISO dates into a Range, rejecting inverted input.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Range{}, err
	}
	return NewRange(s, e)
}

func (r Range) Empty() bool { return r.End <= r.Start }
func (r Range) Days() int { return int(r.End - r.Start) }
func (r Range) String() string { return "[" + r.Start.String() + ", " + r.End.String() + ")" }

func (r Range) Contains(d Date) bool { return d >= r.Start && d < r.End }

// Overlaps is true when the two ranges share at least one day.
func (r Range) Overlaps(o Range) bool { return r.Start < o.End && o.Start < r.End }

// Intersect returns the shared days; the result is empty when they do not overlap.
func (r Range) Intersect(o Range) Range {
	s, e := r.Start, r.End
	if o.Start > s {
		s = o.Start
	}
	if o.End < e {
		e = o.End
	}
	if e < s {
		e = s
	}
	return Range{Start: s, End: e}
}

// Months lists every month the range touches, in order.
func (r Range) Months() []YearMonth {
	if r.Empty() {
		return nil
	}
	var out []YearMonth
	cur := r.Start.YearMonth()
	last := (r.End - 1).YearMonth()
	for {
		out = append(out, cur)
		if cur == last {
			return out
		}
		cur = cur.Range().End.YearMonth()
	}
}
