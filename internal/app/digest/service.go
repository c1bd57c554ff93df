package digest

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/identity"
	"github.com/gtdflow/gtdflow/internal/app/invite"
	"github.com/gtdflow/gtdflow/internal/app/review"
)

type UserLister interface {
	ListUsers(ctx context.Context) ([]identity.User, error)
}

type StatsSource interface {
	Weekly(ctx context.Context, userID string, weeks int) ([]review.WeekStats, error)
}

// Service emails each active user a summary of their past week. Users with
// no recorded activity are skipped rather than sent an empty report.
type Service struct {
	Users  UserLister
	Stats  StatsSource
	Mailer invite.Mailer
	From   string
	Now    func() time.Time
}

func NewService(users UserLister, stats StatsSource, mailer invite.Mailer, from string) *Service {
	return &Service{
		Users:  users,
		Stats:  stats,
		Mailer: mailer,
		From:   from,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<body style="font-family: sans-serif; color: #222;">
<h2>Your weekly review</h2>
<p>Here is what happened in your system during the week of {{.WeekOf}}:</p>
<ul>
<li>Captured: {{.Captured}}</li>
<li>Completed: {{.Completed}}</li>
<li>Calendar invites sent: {{.InvitesSent}}</li>
</ul>
<p>Completion rate: {{.CompletionPercent}}%</p>
<p>Take ten minutes to empty your inbox and pick next actions for the week ahead.</p>
</body>
</html>
`))

type digestData struct {
	WeekOf            string
	Captured          int
	Completed         int
	InvitesSent       int
	CompletionPercent int
}

// Run sends one digest per user. Per-user failures are logged and counted
// but do not stop the sweep.
func (s *Service) Run(ctx context.Context) error {
	users, err := s.Users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var sent, failed int
	for _, user := range users {
		ok, err := s.sendDigest(ctx, user)
		if err != nil {
			failed++
			log.Printf("digest for %s failed: %v", user.Email, err)
			continue
		}
		if ok {
			sent++
		}
	}
	log.Printf("digest sweep done: %d sent, %d failed, %d users", sent, failed, len(users))
	return nil
}

func (s *Service) sendDigest(ctx context.Context, user identity.User) (bool, error) {
	stats, err := s.Stats.Weekly(ctx, user.ID, 1)
	if err != nil {
		return false, err
	}
	if len(stats) == 0 {
		return false, nil
	}
	week := stats[0]
	if week.Captured == 0 && week.Completed == 0 && week.InvitesSent == 0 {
		return false, nil
	}

	var body bytes.Buffer
	err = digestTemplate.Execute(&body, digestData{
		WeekOf:            week.WeekStart.Format("January 2, 2006"),
		Captured:          week.Captured,
		Completed:         week.Completed,
		InvitesSent:       week.InvitesSent,
		CompletionPercent: int(week.CompletionRate * 100),
	})
	if err != nil {
		return false, err
	}

	_, err = s.Mailer.Send(ctx, invite.Message{
		From:     s.From,
		To:       []string{user.Email},
		Subject:  "Your weekly review",
		HTMLBody: body.String(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
