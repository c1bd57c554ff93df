package invite

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/tasks"
)

// Composer renders the human-readable half of an invite email. The machine
// half is the .ics attachment; the body exists for clients that show the
// message before the calendar entry.
type Composer struct{}

func (Composer) Subject(task tasks.Task) string {
	return "Calendar Invite: " + task.Title
}

// Body renders a small self-contained HTML document. Times are shown in UTC
// to match the attachment.
func (Composer) Body(task tasks.Task) string {
	start := time.Now().UTC()
	if task.ScheduledAt != nil {
		start = task.ScheduledAt.UTC()
	}

	var b strings.Builder
	b.WriteString("<html><body style=\"font-family: sans-serif; color: #222;\">\n")
	b.WriteString("<h2>You have a scheduled task</h2>\n")
	fmt.Fprintf(&b, "<p><strong>%s</strong></p>\n", html.EscapeString(task.Title))
	if task.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(task.Description))
	}
	fmt.Fprintf(&b, "<p>Date: %s</p>\n", start.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "<p>Time: %s UTC</p>\n", start.Format("3:04 PM"))
	if task.EstimatedMinutes != nil && *task.EstimatedMinutes > 0 {
		fmt.Fprintf(&b, "<p>Duration: %d minutes</p>\n", *task.EstimatedMinutes)
	}
	if task.Context != "" {
		fmt.Fprintf(&b, "<p>Context: %s</p>\n", html.EscapeString(task.Context))
	}
	b.WriteString("<p>Open the attached invite to add this to your calendar.</p>\n")
	b.WriteString("</body></html>\n")
	return b.String()
}
