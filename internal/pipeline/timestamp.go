package pipeline

import (
	"errors"
	"strings"
	"time"
)

// naiveLayout is the zone-less form. time.Parse accepts fractional seconds
// after the seconds field even though the layout does not name them.
const naiveLayout = "2006-01-02T15:04:05"

var errEmptyTimestamp = errors.New("empty timestamp")

// ParseTimestamp reads the one timestamp grammar the pipeline accepts:
//
//	YYYY-MM-DD[ T]HH:MM:SS[.fraction][Z|±hh:mm]
//
// A value without a zone is taken as UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
