package view

import (
	"math"
	"strconv"
	"time"
)

const justNow = "Just now"

// timeLayouts are tried in order. The reference backend sends RFC 3339; the
// second form is what a naive SQL timestamp column prints, in the server's
// local time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTimestamp reads zone-less layouts in loc.
func parseTimestamp(ts string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders ts relative to now. Unparseable and future timestamps
// read as "Just now"; anything a week or older is shown as a date in now's
// location.
func FormatTime(ts string, now time.Time) string {
	t, ok := parseTimestamp(ts, now.Location())
	if !ok {
		return justNow
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return justNow
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d/time.Hour)) + "h ago"
	case d < 7*24*time.Hour:
		return strconv.Itoa(int(d/(24*time.Hour))) + "d ago"
	default:
		return t.In(now.Location()).Format("1/2/2006")
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize picks the largest unit that keeps the value under 1024,
// capped at GB, and rounds to two decimals.
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "Unknown size"
	}

	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}

	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
