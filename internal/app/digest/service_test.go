package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/identity"
	"github.com/gtdflow/gtdflow/internal/app/invite"
	"github.com/gtdflow/gtdflow/internal/app/review"
)

type fakeUsers struct {
	users []identity.User
}

func (f *fakeUsers) ListUsers(ctx context.Context) ([]identity.User, error) {
	return f.users, nil
}

type fakeStats struct {
	byUser map[string][]review.WeekStats
	err    error
}

func (f *fakeStats) Weekly(ctx context.Context, userID string, weeks int) ([]review.WeekStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

type fakeDigestMailer struct {
	sent []invite.Message
	err  error
}

func (f *fakeDigestMailer) Send(ctx context.Context, msg invite.Message) (invite.DeliveryResult, error) {
	if f.err != nil {
		return invite.DeliveryResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return invite.DeliveryResult{MessageID: "digest-1@test", Recipients: msg.To}, nil
}

func activeWeek() []review.WeekStats {
	return []review.WeekStats{{
		WeekStart:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Captured:       8,
		Completed:      6,
		InvitesSent:    1,
		CompletionRate: 0.75,
	}}
}

func TestRunSendsDigests(t *testing.T) {
	users := &fakeUsers{users: []identity.User{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com"},
	}}
	stats := &fakeStats{byUser: map[string][]review.WeekStats{
		"u1": activeWeek(),
		// u2 had no activity this week.
		"u2": {},
	}}
	mailer := &fakeDigestMailer{}
	svc := NewService(users, stats, mailer, "invites@gtdflow.app")

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one digest, got %d", len(mailer.sent))
	}

	msg := mailer.sent[0]
	if msg.To[0] != "u1@example.com" || msg.Subject != "Your weekly review" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	for _, want := range []string{"Captured: 8", "Completed: 6", "Calendar invites sent: 1", "75%"} {
		if !strings.Contains(msg.HTMLBody, want) {
			t.Errorf("digest body missing %q:\n%s", want, msg.HTMLBody)
		}
	}
}

func TestRunSkipsQuietWeeks(t *testing.T) {
	users := &fakeUsers{users: []identity.User{{ID: "u1", Email: "u1@example.com"}}}
	stats := &fakeStats{byUser: map[string][]review.WeekStats{
		"u1": {{WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}},
	}}
	mailer := &fakeDigestMailer{}
	svc := NewService(users, stats, mailer, "invites@gtdflow.app")

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no digests for a quiet week, got %d", len(mailer.sent))
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	users := &fakeUsers{users: []identity.User{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com"},
	}}
	stats := &fakeStats{byUser: map[string][]review.WeekStats{
		"u1": activeWeek(),
		"u2": activeWeek(),
	}}
	mailer := &fakeDigestMailer{err: errors.New("smtp down")}
	svc := NewService(users, stats, mailer, "invites@gtdflow.app")

	// Delivery fails for every user, but the sweep itself completes.
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run should not fail on delivery errors: %v", err)
	}
}
