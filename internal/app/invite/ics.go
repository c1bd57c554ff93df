package invite

import (
	"bytes"
	"fmt"
	"regexp"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gtdflow/gtdflow/internal/app/tasks"
)

const (
	defaultDurationMinutes = 30
	alarmLead              = "-PT15M"
)

// Encoder renders a scheduled task as a single-occurrence iCalendar invite.
// Text fields pass through go-ical, which escapes reserved characters
// (comma, semicolon, backslash, newline) and emits CRLF-terminated,
// folded lines.
type Encoder struct {
	ProductID string
	Domain    string
	Now       func() time.Time
}

func NewEncoder() *Encoder {
	return &Encoder{
		ProductID: "-//gtdflow//Calendar Invite//EN",
		Domain:    "gtdflow.app",
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Encode produces the calendar document bytes. Callers must not pass a task
// without a schedule: the encoder substitutes the current time rather than
// failing, so the precondition check belongs to the orchestration layer.
func (e *Encoder) Encode(task tasks.Task) ([]byte, error) {
	now := e.Now().UTC().Truncate(time.Second)

	start := now
	if task.ScheduledAt != nil && !task.ScheduledAt.IsZero() {
		start = task.ScheduledAt.UTC().Truncate(time.Second)
	}
	minutes := defaultDurationMinutes
	if task.EstimatedMinutes != nil && *task.EstimatedMinutes > 0 {
		minutes = *task.EstimatedMinutes
	}
	end := start.Add(time.Duration(minutes) * time.Minute)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, e.ProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "REQUEST")

	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, e.uid(task.ID, now))
	event.Props.SetDateTime(ical.PropDateTimeStamp, now)
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, end)
	event.Props.SetText(ical.PropSummary, task.Title)
	if task.Description != "" {
		event.Props.SetText(ical.PropDescription, task.Description)
	}
	if task.Context != "" {
		event.Props.SetText(ical.PropLocation, task.Context)
	}
	event.Props.SetText(ical.PropStatus, "CONFIRMED")
	setRaw(event.Props, ical.PropSequence, "0")
	setRaw(event.Props, ical.PropPriority, "5")

	alarm := ical.NewComponent("VALARM")
	setRaw(alarm.Props, ical.PropTrigger, alarmLead)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, "Reminder: your scheduled task starts in 15 minutes")
	event.Children = append(event.Children, alarm)

	cal.Children = append(cal.Children, event)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// uid embeds the current wall clock so repeated sends for the same task
// always produce distinct identifiers.
func (e *Encoder) uid(taskID string, now time.Time) string {
	return fmt.Sprintf("%s-%d@%s", taskID, now.UnixMilli(), e.Domain)
}

// setRaw writes a property value verbatim, without the VALUE=TEXT parameter
// SetText would add for properties whose default type is not TEXT
// (SEQUENCE, PRIORITY, TRIGGER).
func setRaw(props ical.Props, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	props.Set(p)
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// AttachmentFilename derives the .ics filename from the task title, with
// every non-alphanumeric character replaced by an underscore.
func AttachmentFilename(title string) string {
	return nonAlphanumeric.ReplaceAllString(title, "_") + ".ics"
}
