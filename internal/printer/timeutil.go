package printer

import (
	"fmt"
	"time"
)

// RelativeTime returns a human-readable time relative to now.
// Examples: "5 seconds ago", "in 2 minutes", "3 hours ago".
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in " + humanDuration(-diff)
	}
	return humanDuration(diff) + " ago"
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return plural(int(d.Seconds()), "second")
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
