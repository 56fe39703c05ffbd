// Package common provides shared display helpers used across the CLI and
// server packages.
package common

import (
	"fmt"
	"time"
)

// FormatAge returns a human-readable age string for a timestamp.
// Examples: "just now", "5m ago", "3h ago", "2d ago"
func FormatAge(t time.Time) string {
	return FormatDuration(time.Since(t))
}

// FormatDuration returns a human-readable string for a duration.
// Examples: "just now", "5m ago", "3h ago", "2d ago"
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		return fmt.Sprintf("%dh ago", hours)
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd ago", days)
}

// FormatSeconds renders an elapsed-seconds counter, such as a recorded
// inspection duration, as a compact clock string.
// Examples: "45s", "12m 05s", "1h 23m"
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", seconds)
	case d < time.Hour:
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), seconds%60)
	default:
		return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatHours renders a fractional hour count the way the statistics
// output expects it: minutes below one hour, one decimal above.
// Examples: "45m", "1.5h", "36.0h"
func FormatHours(hours float64) string {
	if hours < 0 {
		hours = 0
	}
	if hours < 1 {
		return fmt.Sprintf("%dm", int(hours*60+0.5))
	}
	return fmt.Sprintf("%.1fh", hours)
}
