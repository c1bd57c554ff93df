package review

import (
	"context"
	"time"
)

const (
	defaultWeeks = 1
	maxWeeks     = 12
)

type WeekStats struct {
	WeekStart      time.Time `json:"week_start"`
	Captured       int       `json:"captured"`
	Completed      int       `json:"completed"`
	InvitesSent    int       `json:"invites_sent"`
	CompletionRate float64   `json:"completion_rate"`
}

// Service answers the weekly-review questions: what came in, what got done,
// what went on a calendar.
type Service struct {
	Repo Repository
	Now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		Repo: repo,
		Now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Weekly(ctx context.Context, userID string, weeks int) ([]WeekStats, error) {
	if weeks <= 0 {
		weeks = defaultWeeks
	}
	if weeks > maxWeeks {
		weeks = maxWeeks
	}

	since := s.Now().AddDate(0, 0, -7*weeks)
	counts, err := s.Repo.WeeklyCounts(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	stats := make([]WeekStats, 0, len(counts))
	for _, w := range counts {
		stats = append(stats, WeekStats{
			WeekStart:      w.WeekStart,
			Captured:       w.Captured,
			Completed:      w.Completed,
			InvitesSent:    w.InvitesSent,
			CompletionRate: completionRate(w),
		})
	}
	return stats, nil
}

func completionRate(w WeekCounts) float64 {
	if w.Captured == 0 {
		return 0
	}
	return float64(w.Completed) / float64(w.Captured)
}
