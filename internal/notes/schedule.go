package notes

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidScheduleTime indicates that a schedule timestamp did not match
// any accepted grammar.
var ErrInvalidScheduleTime = errors.New("notes: invalid schedule time format")

// naiveLayouts are timestamp shapes carrying no offset information. They are
// interpreted in the server process's local timezone at parse time and then
// converted to UTC before storage.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseScheduleTime normalizes a caller-supplied schedule timestamp into a
// canonical UTC instant. An empty input means "not a reminder" and yields
// (nil, nil), distinct from a malformed input which yields
// ErrInvalidScheduleTime. Inputs with an explicit offset or a trailing "Z"
// are shifted to UTC without loss; naive inputs are read as server-local
// wall time.
func ParseScheduleTime(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		instant := parsed.UTC()
		return &instant, nil
	}

	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			instant := parsed.UTC()
			return &instant, nil
		}
	}

	return nil, ErrInvalidScheduleTime
}
