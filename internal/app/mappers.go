package app

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"hostel_availability/internal/domain"
)

/********** alias registries (single source of truth) **********/

var hostelAliases = map[string][]string{
	"id":      {"id", "hostel_id", "hostelId"},
	"host_id": {"host_id", "hostId", "owner_id", "ownerId", "owner.id", "host.id"},
	"name":    {"name", "hostel_name", "title"},
}

var roomAliases = map[string][]string{
	"id":          {"id", "room_id", "roomId"},
	"capacity":    {"capacity", "beds", "max_occupancy", "maxOccupancy", "occupancy.max"},
	"price_cents": {"price_cents", "priceCents", "price.cents"},
	"price":       {"price", "price_per_night", "pricePerNight", "price.amount", "nightly_rate"},
	"room_type":   {"room_type", "roomType", "type", "category"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "". Numbers are formatted so that
// numeric owner ids survive.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

/********** mappers **********/

// mapHostel reads a catalog hostel payload. ok is false when it carries no id.
func mapHostel(p map[string]any, fallbackID int64) (domain.Hostel, bool) {
	h := domain.Hostel{
		HostID: firstNonEmptyAlias(p, hostelAliases, "host_id"),
		Name:   firstNonEmptyAlias(p, hostelAliases, "name"),
	}
	if id := firstInt64Flexible(p, hostelAliases["id"]...); id != nil {
		h.ID = *id
	} else {
		h.ID = fallbackID
	}
	return h, h.ID > 0
}

// mapRooms keeps every room with a usable id. Prices given in major units
// are converted to cents.
func mapRooms(hostelID int64, in []map[string]any) []domain.Room {
	out := make([]domain.Room, 0, len(in))
	for i, m := range in {
		id := firstInt64Flexible(m, roomAliases["id"]...)
		if id == nil || *id <= 0 {
			log.Warn().Int64("hostel_id", hostelID).Int("index", i).Msg("catalog room without id skipped")
			continue
		}
		r := domain.Room{
			ID:       *id,
			HostelID: hostelID,
			RoomType: firstNonEmptyAlias(m, roomAliases, "room_type"),
		}
		if c := firstInt64Flexible(m, roomAliases["capacity"]...); c != nil && *c > 0 {
			r.Capacity = int(*c)
		}
		if pc := firstInt64Flexible(m, roomAliases["price_cents"]...); pc != nil {
			r.PriceCents = *pc
		} else if p := getFloatFlexible(m, roomAliases["price"]...); p != nil {
			r.PriceCents = int64(math.Round(*p * 100))
		}
		out = append(out, r)
	}
	return out
}
