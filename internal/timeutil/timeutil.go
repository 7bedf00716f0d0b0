// internal/timeutil/timeutil.go
// -----------------------------
// Helpers for the time formats the pipeline meets on the wire: ISO-8601
// timestamps in response bodies, Retry-After headers (delta seconds or an
// HTTP-date), and rate-limit reset stamps (unix seconds or milliseconds).
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var iso8601Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseISO8601 parses the ISO-8601 timestamp shapes APIs commonly emit.
// Timestamps without an offset are taken as UTC.
func ParseISO8601(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ISO-8601 timestamp %q", s)
}

// ParseRetryAfter interprets a Retry-After header value, either delta seconds
// or an HTTP-date, as a wait duration from now. Unparseable or past values
// yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := time.Parse(time.RFC1123, v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// ParseResetEpoch interprets a rate-limit reset stamp as a point in time.
// Values are unix seconds unless large enough to only make sense as
// milliseconds.
func ParseResetEpoch(v string) (time.Time, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 { // millisecond stamps
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
