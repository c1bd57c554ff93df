package invite

import (
	"strings"
	"testing"
)

func TestComposeSubject(t *testing.T) {
	task := scheduledTask()
	if got := (Composer{}).Subject(task); got != "Calendar Invite: Write report" {
		t.Errorf("unexpected subject: %q", got)
	}
}

func TestComposeBody(t *testing.T) {
	task := scheduledTask()
	body := (Composer{}).Body(task)

	for _, want := range []string{
		"Write report",
		"Quarterly numbers",
		"Monday, June 3, 2024",
		"3:00 PM",
		"45 minutes",
		"@computer",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestComposeBodyEscapesHTML(t *testing.T) {
	task := scheduledTask()
	task.Title = "Review <script>alert(1)</script>"
	body := (Composer{}).Body(task)

	if strings.Contains(body, "<script>") {
		t.Error("title was not escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped title in body:\n%s", body)
	}
}

func TestComposeBodyOmitsOptionalLines(t *testing.T) {
	task := scheduledTask()
	task.Description = ""
	task.Context = ""
	task.EstimatedMinutes = nil
	body := (Composer{}).Body(task)

	if strings.Contains(body, "Duration:") || strings.Contains(body, "Context:") {
		t.Errorf("optional lines rendered without data:\n%s", body)
	}
}
