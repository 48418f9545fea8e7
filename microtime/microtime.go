// Package microtime implements the Unix-microseconds timestamp used
// throughout the store for Expires values, last-read/last-write moments,
// and expiration index buckets.
package microtime

import (
	"strings"
	"time"
)

// Micros is a Unix timestamp in microseconds. Zero means "unset" wherever
// the store treats a timestamp as optional (see dbentity.Row.GetExpires).
type Micros int64

// Zero is the sentinel "no value" moment.
const Zero Micros = 0

// Now returns the current time as Micros.
func Now() Micros {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to Micros.
func FromTime(t time.Time) Micros {
	return Micros(t.UnixMicro())
}

// ToTime converts Micros back to a time.Time in UTC.
func (m Micros) ToTime() time.Time {
	return time.UnixMicro(int64(m)).UTC()
}

// AddSeconds returns m shifted forward by n seconds.
func (m Micros) AddSeconds(n int64) Micros {
	return m + Micros(n)*1_000_000
}

// rfc3339Layout is truncated to whole seconds: "2006-01-02T15:04:05".
const rfc3339Layout = "2006-01-02T15:04:05"

// Format renders m as an RFC3339 string truncated to seconds precision,
// exactly 19 characters, per the store's Expires wire representation.
func (m Micros) Format() string {
	return m.ToTime().Format(rfc3339Layout)
}

// Parse parses an RFC3339(-ish) timestamp string into Micros. It tolerates
// fractional seconds and a trailing "Z" or numeric offset, since inbound
// Expires values may carry sub-second precision even though the store only
// ever emits 19-character timestamps itself.
func Parse(s string) (Micros, bool) {
	candidates := []string{
		time.RFC3339Nano,
		time.RFC3339,
		rfc3339Layout,
	}
	for _, layout := range candidates {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t.UTC()), true
		}
	}
	// Some inputs omit the timezone entirely (bare "2019-01-01T00:00:00.0507979").
	if !strings.ContainsAny(s, "Zz+") {
		if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
			return FromTime(t.UTC()), true
		}
	}
	return 0, false
}
