package review

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WeekCounts is one week's raw activity tally read back from the sink.
type WeekCounts struct {
	WeekStart   time.Time
	Captured    int
	Completed   int
	InvitesSent int
}

type Repository interface {
	WeeklyCounts(ctx context.Context, userID string, since time.Time) ([]WeekCounts, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

func (r *PostgresRepository) WeeklyCounts(ctx context.Context, userID string, since time.Time) ([]WeekCounts, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT date_trunc('week', occurred_at) AS week_start,
		        count(*) FILTER (WHERE event_type = 'task.captured') AS captured,
		        count(*) FILTER (WHERE event_type = 'task.completed') AS completed,
		        count(*) FILTER (WHERE event_type = 'invite.sent') AS invites_sent
		 FROM task_activity
		 WHERE user_id = $1 AND occurred_at >= $2
		 GROUP BY week_start
		 ORDER BY week_start DESC`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weeks := make([]WeekCounts, 0)
	for rows.Next() {
		var w WeekCounts
		if err := rows.Scan(&w.WeekStart, &w.Captured, &w.Completed, &w.InvitesSent); err != nil {
			return nil, err
		}
		weeks = append(weeks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return weeks, nil
}
