package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kamalennam/notes-app-backend/internal/notes"
)

const (
	bodyHeader        = "Here are your scheduled tasks for today:\n"
	untitledTitle     = "Untitled"
	scheduleRendering = "2006-01-02T15:04:05"
)

// Compose renders the digest subject and body for the given notes. It is
// pure: identical inputs always produce byte-identical output. Callers must
// not invoke it with an empty slice; the dispatcher short-circuits before
// composing when nothing is scheduled.
func Compose(scheduled []notes.Note, now time.Time) (subject, body string) {
	taskWord := "task"
	if len(scheduled) > 1 {
		taskWord = "tasks"
	}
	subject = fmt.Sprintf("📚 Today's Reminders (%d %s)", len(scheduled), taskWord)

	lines := make([]string, 0, len(scheduled)+1)
	lines = append(lines, bodyHeader)
	for i, note := range scheduled {
		title := note.Title
		if title == "" {
			title = untitledTitle
		}
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s\n   Scheduled: %s\n",
			i+1, title, note.Content, formatScheduleTime(note.ScheduleAt)))
	}
	body = strings.Join(lines, "\n")

	return subject, body
}

// formatScheduleTime renders a stored schedule instant as an ISO-8601 UTC
// string with an explicit +00:00 offset, e.g. "2024-03-01T09:00:00+00:00".
func formatScheduleTime(instant *time.Time) string {
	if instant == nil {
		return ""
	}
	return instant.UTC().Format(scheduleRendering) + "+00:00"
}
