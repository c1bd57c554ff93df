package review

import (
	"context"
	"testing"
	"time"
)

type fakeCountsRepo struct {
	counts    []WeekCounts
	lastSince time.Time
}

func (f *fakeCountsRepo) WeeklyCounts(ctx context.Context, userID string, since time.Time) ([]WeekCounts, error) {
	f.lastSince = since
	return f.counts, nil
}

func TestWeekly(t *testing.T) {
	repo := &fakeCountsRepo{counts: []WeekCounts{
		{WeekStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Captured: 10, Completed: 4, InvitesSent: 2},
		{WeekStart: time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), Captured: 0, Completed: 0, InvitesSent: 1},
	}}
	svc := NewService(repo)
	svc.Now = func() time.Time { return time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC) }

	stats, err := svc.Weekly(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("weekly failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(stats))
	}
	if stats[0].CompletionRate != 0.4 {
		t.Errorf("unexpected completion rate: %v", stats[0].CompletionRate)
	}
	// No captures means the rate is defined as zero, not NaN.
	if stats[1].CompletionRate != 0 {
		t.Errorf("expected zero rate for empty week, got %v", stats[1].CompletionRate)
	}

	wantSince := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	if !repo.lastSince.Equal(wantSince) {
		t.Errorf("unexpected since: %v, want %v", repo.lastSince, wantSince)
	}
}

func TestWeeklyClampsRange(t *testing.T) {
	repo := &fakeCountsRepo{}
	svc := NewService(repo)
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	if _, err := svc.Weekly(context.Background(), "u1", 0); err != nil {
		t.Fatalf("weekly failed: %v", err)
	}
	if got := now.Sub(repo.lastSince); got != 7*24*time.Hour {
		t.Errorf("default range should be one week, got %v", got)
	}

	if _, err := svc.Weekly(context.Background(), "u1", 500); err != nil {
		t.Fatalf("weekly failed: %v", err)
	}
	if got := now.Sub(repo.lastSince); got != 12*7*24*time.Hour {
		t.Errorf("range should clamp to 12 weeks, got %v", got)
	}
}
