package activitysink

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StoredEvent struct {
	EventID    string
	TaskID     string
	UserID     string
	EventType  string
	Title      string
	OccurredAt time.Time
	ShardID    int
	Metadata   string
}

type Repository interface {
	EnsureSchema(ctx context.Context) error
	InsertEvent(ctx context.Context, event StoredEvent) error
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createActivitySQL = `
CREATE TABLE IF NOT EXISTS task_activity (
  event_id text PRIMARY KEY,
  task_id text NOT NULL,
  user_id text NOT NULL,
  event_type text NOT NULL,
  title text NOT NULL DEFAULT '',
  occurred_at timestamptz NOT NULL,
  shard_id integer NOT NULL DEFAULT 0,
  metadata text NOT NULL DEFAULT ''
)`

const createActivityUserIndexSQL = `
CREATE INDEX IF NOT EXISTS task_activity_user_time_idx ON task_activity (user_id, occurred_at DESC)`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createActivitySQL); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, createActivityUserIndexSQL)
	return err
}

// InsertEvent is idempotent on event_id so JetStream redeliveries land as
// no-ops.
func (r *PostgresRepository) InsertEvent(ctx context.Context, event StoredEvent) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO task_activity (
		   event_id, task_id, user_id, event_type, title, occurred_at, shard_id, metadata
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.TaskID, event.UserID, event.EventType,
		event.Title, event.OccurredAt, event.ShardID, event.Metadata,
	)
	return err
}
