package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/nyc-taxi/internal/domain"
)

// nullKeyPart stands in for an absent passenger count in composite keys.
const nullKeyPart = "∅"

// DedupKey returns the identity of a trip. A non-empty trip identifier is
// the key on its own; otherwise the key is the exact pickup and dropoff
// times, the four coordinates and the passenger count.
func DedupKey(v domain.ValidatedRecord) string {
	if v.TripID != nil {
		if id := strings.TrimSpace(*v.TripID); id != "" {
			return "id:" + id
		}
	}

	passengers := nullKeyPart
	if v.PassengerCount != nil {
		passengers = strconv.Itoa(*v.PassengerCount)
	}
	return strings.Join([]string{
		"trip",
		v.PickupAt.UTC().Format(time.RFC3339Nano),
		v.DropoffAt.UTC().Format(time.RFC3339Nano),
		formatKeyFloat(v.PickupLat),
		formatKeyFloat(v.PickupLon),
		formatKeyFloat(v.DropoffLat),
		formatKeyFloat(v.DropoffLon),
		passengers,
	}, "|")
}

func formatKeyFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Deduplicator remembers the keys of trips it has let through during one
// run. The first occurrence of a key wins. It is not safe for concurrent use.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator returns a Deduplicator that has seen nothing.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Observe records v and reports whether it is the first trip with its key.
func (d *Deduplicator) Observe(v domain.ValidatedRecord) bool {
	key := DedupKey(v)
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys seen.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// Reset forgets every key, ready for the next run.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}
