package presence

import (
	"fmt"
	"time"
)

// FormatDuration renders the time elapsed since start as "1h 01m 01s",
// "2m 05s" or "9s". A zero or future start yields "".
func FormatDuration(start, now time.Time) string {
	if start.IsZero() || start.After(now) {
		return ""
	}

	total := int64(now.Sub(start) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %02dm %02ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// normalizeTimestamp converts a relay timestamp to time. Values below 1e12
// are seconds, larger ones milliseconds.
func normalizeTimestamp(value float64) time.Time {
	if value <= 0 || value != value {
		return time.Time{}
	}
	if value < 1e12 {
		value *= 1000
	}
	return time.UnixMilli(int64(value))
}
