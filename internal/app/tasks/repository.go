package tasks

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTaskNotFound = errors.New("task not found")

const (
	StatusInbox   = "inbox"
	StatusNext    = "next"
	StatusWaiting = "waiting"
	StatusSomeday = "someday"
	StatusDone    = "done"
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusInbox, StatusNext, StatusWaiting, StatusSomeday, StatusDone:
		return true
	default:
		return false
	}
}

type Task struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Context            string     `json:"context,omitempty"`
	Status             string     `json:"status"`
	ProjectID          *string    `json:"project_id,omitempty"`
	ScheduledAt        *time.Time `json:"scheduled_at,omitempty"`
	EstimatedMinutes   *int       `json:"estimated_minutes,omitempty"`
	CalendarInviteSent bool       `json:"calendar_invite_sent"`
	InviteRecipients   string     `json:"invite_recipients,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Outcome   string    `json:"outcome,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	EnsureSchema(ctx context.Context) error
	InsertTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, userID, taskID string) (Task, error)
	ListTasks(ctx context.Context, userID, status string, limit int) ([]Task, error)
	UpdateTaskFields(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	MarkInviteSent(ctx context.Context, userID, taskID, recipients string, at time.Time) error

	InsertProject(ctx context.Context, project Project) error
	ListProjects(ctx context.Context, userID string) ([]Project, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createTasksSQL = `
CREATE TABLE IF NOT EXISTS tasks (
  id text PRIMARY KEY,
  user_id text NOT NULL,
  title text NOT NULL,
  description text NOT NULL DEFAULT '',
  context text NOT NULL DEFAULT '',
  status text NOT NULL DEFAULT 'inbox',
  project_id text,
  scheduled_at timestamptz,
  estimated_minutes integer,
  calendar_invite_sent boolean NOT NULL DEFAULT false,
  invite_recipients text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  completed_at timestamptz
)`

const createTasksUserStatusIndexSQL = `
CREATE INDEX IF NOT EXISTS tasks_user_status_idx ON tasks (user_id, status, created_at DESC)`

const createProjectsSQL = `
CREATE TABLE IF NOT EXISTS projects (
  id text PRIMARY KEY,
  user_id text NOT NULL,
  name text NOT NULL,
  outcome text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now()
)`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createTasksSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createTasksUserStatusIndexSQL); err != nil {
		return err
	}
	if _, err := r.Pool.Exec(ctx, createProjectsSQL); err != nil {
		return err
	}
	return nil
}

const taskColumns = `id, user_id, title, description, context, status, project_id,
scheduled_at, estimated_minutes, calendar_invite_sent, invite_recipients,
created_at, updated_at, completed_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Context,
		&t.Status,
		&t.ProjectID,
		&t.ScheduledAt,
		&t.EstimatedMinutes,
		&t.CalendarInviteSent,
		&t.InviteRecipients,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	return t, err
}

func (r *PostgresRepository) InsertTask(ctx context.Context, task Task) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO tasks (
		   id, user_id, title, description, context, status, project_id,
		   scheduled_at, estimated_minutes, created_at, updated_at
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		task.ID, task.UserID, task.Title, task.Description, task.Context,
		task.Status, task.ProjectID, task.ScheduledAt, task.EstimatedMinutes,
		task.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) GetTask(ctx context.Context, userID, taskID string) (Task, error) {
	t, err := scanTask(r.Pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func (r *PostgresRepository) ListTasks(ctx context.Context, userID, status string, limit int) ([]Task, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateTaskFields(ctx context.Context, task Task) error {
	res, err := r.Pool.Exec(ctx,
		`UPDATE tasks
		 SET title = $3, description = $4, context = $5, status = $6,
		     project_id = $7, scheduled_at = $8, estimated_minutes = $9,
		     updated_at = $10, completed_at = $11
		 WHERE id = $1 AND user_id = $2`,
		task.ID, task.UserID, task.Title, task.Description, task.Context,
		task.Status, task.ProjectID, task.ScheduledAt, task.EstimatedMinutes,
		task.UpdatedAt, task.CompletedAt,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := r.Pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkInviteSent(ctx context.Context, userID, taskID, recipients string, at time.Time) error {
	res, err := r.Pool.Exec(ctx,
		`UPDATE tasks
		 SET calendar_invite_sent = true, invite_recipients = $3, updated_at = $4
		 WHERE id = $1 AND user_id = $2`,
		taskID, userID, recipients, at,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertProject(ctx context.Context, project Project) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO projects (id, user_id, name, outcome, created_at) VALUES ($1, $2, $3, $4, $5)`,
		project.ID, project.UserID, project.Name, project.Outcome, project.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, user_id, name, outcome, created_at
		 FROM projects
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Outcome, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}
