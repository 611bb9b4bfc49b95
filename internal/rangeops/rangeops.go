// Package rangeops implements the interval algebra behind room calendars.
//
// A room calendar is stored sparse: a sorted slice of disjoint, non-empty
// intervals holding only BOOKED or BLOCKED runs. Touching intervals never
// share a state and every day not covered is AVAILABLE. All functions are
// pure; inputs are never modified.
package rangeops

import (
	"sort"

	"hostel_availability/internal/domain"
)

// Validate reports the first broken calendar invariant, wrapped in
// domain.ErrInvariantViolation.
func Validate(ivs []domain.Interval) error {
	for i, iv := range ivs {
		if iv.End <= iv.Start {
			return domain.Invariant("interval %d %s is empty", i, iv)
		}
		switch iv.State {
		case domain.StateBooked, domain.StateBlocked:
		case domain.StateAvailable:
			return domain.Invariant("interval %d %s stores AVAILABLE", i, iv)
		default:
			return domain.Invariant("interval %d has unknown state %q", i, iv.State)
		}
		if i == 0 {
			continue
		}
		prev := ivs[i-1]
		if iv.Start < prev.End {
			return domain.Invariant("interval %d %s overlaps or precedes %s", i, iv, prev)
		}
		if iv.Start == prev.End && iv.State == prev.State {
			return domain.Invariant("interval %d %s not merged with %s", i, iv, prev)
		}
	}
	return nil
}

// firstEndingAfter is the index of the first interval whose End is past d.
func firstEndingAfter(ivs []domain.Interval, d domain.Date) int {
	return sort.Search(len(ivs), func(k int) bool { return ivs[k].End > d })
}

// Apply overwrites r with state st. Intervals cut by the range edges keep
// their original state outside it, and equal neighbours are coalesced.
// Locating the touched run is O(log n + k); the result is a fresh slice.
func Apply(ivs []domain.Interval, r domain.Range, st domain.DayState) []domain.Interval {
	if r.Empty() {
		return clone(ivs)
	}
	i := firstEndingAfter(ivs, r.Start)
	j := i + sort.Search(len(ivs)-i, func(k int) bool { return ivs[i+k].Start >= r.End })

	out := make([]domain.Interval, 0, len(ivs)+2)
	out = append(out, ivs[:i]...)
	if i < j && ivs[i].Start < r.Start {
		out = push(out, domain.Interval{Start: ivs[i].Start, End: r.Start, State: ivs[i].State})
	}
	if st != domain.StateAvailable {
		out = push(out, domain.Interval{Start: r.Start, End: r.End, State: st})
	}
	if i < j && ivs[j-1].End > r.End {
		out = push(out, domain.Interval{Start: r.End, End: ivs[j-1].End, State: ivs[j-1].State})
	}
	for _, iv := range ivs[j:] {
		out = push(out, iv)
	}
	return out
}

func push(out []domain.Interval, iv domain.Interval) []domain.Interval {
	if n := len(out); n > 0 && out[n-1].End == iv.Start && out[n-1].State == iv.State {
		out[n-1].End = iv.End
		return out
	}
	return append(out, iv)
}

func clone(ivs []domain.Interval) []domain.Interval {
	out := make([]domain.Interval, len(ivs))
	copy(out, ivs)
	return out
}

// Overlapping returns the stored runs touching w, clipped to w.
func Overlapping(ivs []domain.Interval, w domain.Range) []domain.Interval {
	out := []domain.Interval{}
	if w.Empty() {
		return out
	}
	for i := firstEndingAfter(ivs, w.Start); i < len(ivs) && ivs[i].Start < w.End; i++ {
		out = append(out, clip(ivs[i], w))
	}
	return out
}

// AnyIn reports whether some day of w is in state st. st must not be AVAILABLE.
func AnyIn(ivs []domain.Interval, w domain.Range, st domain.DayState) bool {
	for _, iv := range Overlapping(ivs, w) {
		if iv.State == st {
			return true
		}
	}
	return false
}

// Dense expands the sparse form over w, filling gaps with AVAILABLE runs.
func Dense(ivs []domain.Interval, w domain.Range) []domain.Interval {
	out := []domain.Interval{}
	if w.Empty() {
		return out
	}
	cur := w.Start
	for _, iv := range Overlapping(ivs, w) {
		if cur < iv.Start {
			out = append(out, domain.Interval{Start: cur, End: iv.Start, State: domain.StateAvailable})
		}
		out = append(out, iv)
		cur = iv.End
	}
	if cur < w.End {
		out = append(out, domain.Interval{Start: cur, End: w.End, State: domain.StateAvailable})
	}
	return out
}

// Cells flattens w into one cell per day.
func Cells(ivs []domain.Interval, w domain.Range) []domain.DayCell {
	out := make([]domain.DayCell, 0, max(w.Days(), 0))
	for _, iv := range Dense(ivs, w) {
		for d := iv.Start; d < iv.End; d++ {
			out = append(out, domain.DayCell{Date: d, State: iv.State})
		}
	}
	return out
}

// Release frees a stay: its days become AVAILABLE, except those still held
// by a block range, which become BLOCKED.
func Release(ivs []domain.Interval, stay domain.Range, blocks []domain.BlockRange) []domain.Interval {
	out := Apply(ivs, stay, domain.StateAvailable)
	for _, b := range blocks {
		if part := b.Range.Intersect(stay); !part.Empty() {
			out = Apply(out, part, domain.StateBlocked)
		}
	}
	return out
}

// SubtractBlocks removes r from every block range, trimming or splitting the
// ones it cuts. A split keeps the left piece's ID; the right piece gets ID 0.
func SubtractBlocks(bs []domain.BlockRange, r domain.Range) []domain.BlockRange {
	out := make([]domain.BlockRange, 0, len(bs))
	for _, b := range bs {
		if r.Empty() || !b.Range.Overlaps(r) {
			out = append(out, b)
			continue
		}
		if b.Range.Start < r.Start {
			left := b
			left.Range = domain.Range{Start: b.Range.Start, End: r.Start}
			out = append(out, left)
		}
		if b.Range.End > r.End {
			right := b
			if b.Range.Start < r.Start {
				right.ID = 0
			}
			right.Range = domain.Range{Start: r.End, End: b.Range.End}
			out = append(out, right)
		}
	}
	return out
}

func clip(iv domain.Interval, w domain.Range) domain.Interval {
	if iv.Start < w.Start {
		iv.Start = w.Start
	}
	if iv.End > w.End {
		iv.End = w.End
	}
	return iv
}
