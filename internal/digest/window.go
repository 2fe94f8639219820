package digest

import "time"

// Window is the half-open UTC interval [Start, End) covering one calendar
// day. A note scheduled exactly at End belongs to the next day's window.
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeWindow returns the window for the UTC calendar date of now:
// Start is midnight UTC of that date and End is Start plus 24 hours.
func ComputeWindow(now time.Time) Window {
	utcNow := now.UTC()
	start := time.Date(utcNow.Year(), utcNow.Month(), utcNow.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}
