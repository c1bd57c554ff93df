package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gtdflow/gtdflow/internal/contracts"
	"github.com/gtdflow/gtdflow/internal/sharding"
	"github.com/nats-io/nuid"
)

var (
	ErrTitleRequired      = errors.New("title is required")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrProjectName        = errors.New("project name is required")
	ErrNotInbox           = errors.New("only inbox items can be promoted")
	ErrScheduleRequired   = errors.New("scheduled_at is required")
	ErrInvalidDuration    = errors.New("estimated_minutes must be positive")
	ErrInvalidTransition  = errors.New("completed tasks can only move back to next")
)

type PublishFunc func(subject string, payload []byte) error

// Service owns the task write model. Mutations are applied synchronously to
// the repository; an activity event is published afterwards for the review
// pipeline. Publish failures are logged, not surfaced: the write has already
// committed and the sink tolerates gaps.
type Service struct {
	Repo    Repository
	Publish PublishFunc
	Now     func() time.Time
	NewID   func() string
}

func NewService(repo Repository, publish PublishFunc) *Service {
	return &Service{
		Repo:    repo,
		Publish: publish,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   nuid.Next,
	}
}

type CaptureRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PromoteRequest struct {
	Context          string     `json:"context"`
	ScheduledAt      *time.Time `json:"scheduled_at"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
}

type ProjectRequest struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
}

type ScheduleRequest struct {
	ScheduledAt      time.Time `json:"scheduled_at"`
	EstimatedMinutes *int      `json:"estimated_minutes"`
}

type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Context     *string `json:"context"`
}

func (s *Service) Capture(ctx context.Context, userID string, req CaptureRequest) (Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Task{}, ErrTitleRequired
	}

	now := s.Now()
	task := Task{
		ID:          s.NewID(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      StatusInbox,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.InsertTask(ctx, task); err != nil {
		return Task{}, err
	}
	s.publishActivity(task, contracts.EventTaskCaptured, "")
	return task, nil
}

func (s *Service) Get(ctx context.Context, userID, taskID string) (Task, error) {
	return s.Repo.GetTask(ctx, userID, taskID)
}

func (s *Service) List(ctx context.Context, userID, status string, limit int) ([]Task, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.Repo.ListTasks(ctx, userID, status, limit)
}

// PromoteToNext moves an inbox item onto the next-actions list, optionally
// tagging a context and a schedule in the same step.
func (s *Service) PromoteToNext(ctx context.Context, userID, taskID string, req PromoteRequest) (Task, error) {
	task, err := s.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.Status != StatusInbox {
		return Task{}, ErrNotInbox
	}
	if req.EstimatedMinutes != nil && *req.EstimatedMinutes <= 0 {
		return Task{}, ErrInvalidDuration
	}

	task.Status = StatusNext
	if c := strings.TrimSpace(req.Context); c != "" {
		task.Context = c
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.IsZero() {
		at := req.ScheduledAt.UTC()
		task.ScheduledAt = &at
		task.EstimatedMinutes = req.EstimatedMinutes
	}
	task.UpdatedAt = s.Now()

	if err := s.Repo.UpdateTaskFields(ctx, task); err != nil {
		return Task{}, err
	}
	s.publishActivity(task, contracts.EventTaskPromoted, "next")
	return task, nil
}

// PromoteToProject creates a project from an inbox item; the item itself
// becomes the project's first next action.
func (s *Service) PromoteToProject(ctx context.Context, userID, taskID string, req ProjectRequest) (Task, Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Task{}, Project{}, ErrProjectName
	}

	task, err := s.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return Task{}, Project{}, err
	}
	if task.Status != StatusInbox {
		return Task{}, Project{}, ErrNotInbox
	}

	project := Project{
		ID:        s.NewID(),
		UserID:    userID,
		Name:      name,
		Outcome:   strings.TrimSpace(req.Outcome),
		CreatedAt: s.Now(),
	}
	if err := s.Repo.InsertProject(ctx, project); err != nil {
		return Task{}, Project{}, err
	}

	task.Status = StatusNext
	task.ProjectID = &project.ID
	task.UpdatedAt = s.Now()
	if err := s.Repo.UpdateTaskFields(ctx, task); err != nil {
		return Task{}, Project{}, err
	}
	s.publishActivity(task, contracts.EventTaskPromoted, "project")
	return task, project, nil
}

// UpdateStatus performs a kanban move. Moving to done stamps completed_at;
// moving a done task anywhere but next is rejected.
func (s *Service) UpdateStatus(ctx context.Context, userID, taskID, status string) (Task, error) {
	if !IsValidStatus(status) {
		return Task{}, ErrInvalidStatus
	}

	task, err := s.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}
	if task.Status == StatusDone && status != StatusNext && status != StatusDone {
		return Task{}, ErrInvalidTransition
	}

	now := s.Now()
	task.Status = status
	task.UpdatedAt = now
	if status == StatusDone {
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}

	if err := s.Repo.UpdateTaskFields(ctx, task); err != nil {
		return Task{}, err
	}
	if status == StatusDone {
		s.publishActivity(task, contracts.EventTaskCompleted, "")
	} else {
		s.publishActivity(task, contracts.EventTaskStatusChanged, status)
	}
	return task, nil
}

func (s *Service) Schedule(ctx context.Context, userID, taskID string, req ScheduleRequest) (Task, error) {
	if req.ScheduledAt.IsZero() {
		return Task{}, ErrScheduleRequired
	}
	if req.EstimatedMinutes != nil && *req.EstimatedMinutes <= 0 {
		return Task{}, ErrInvalidDuration
	}

	task, err := s.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}

	at := req.ScheduledAt.UTC()
	task.ScheduledAt = &at
	task.EstimatedMinutes = req.EstimatedMinutes
	task.UpdatedAt = s.Now()

	if err := s.Repo.UpdateTaskFields(ctx, task); err != nil {
		return Task{}, err
	}
	s.publishActivity(task, contracts.EventTaskScheduled, at.Format(time.RFC3339))
	return task, nil
}

func (s *Service) Update(ctx context.Context, userID, taskID string, req UpdateRequest) (Task, error) {
	task, err := s.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return Task{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return Task{}, ErrTitleRequired
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.Context != nil {
		task.Context = strings.TrimSpace(*req.Context)
	}
	task.UpdatedAt = s.Now()

	if err := s.Repo.UpdateTaskFields(ctx, task); err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	task, err := s.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	s.publishActivity(task, contracts.EventTaskDeleted, "")
	return nil
}

func (s *Service) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	return s.Repo.ListProjects(ctx, userID)
}

func (s *Service) publishActivity(task Task, eventType, metadata string) {
	if s.Publish == nil {
		return
	}
	event := contracts.ActivityEvent{
		EventID:    s.NewID(),
		TaskID:     task.ID,
		UserID:     task.UserID,
		EventType:  eventType,
		Title:      task.Title,
		OccurredAt: s.Now(),
		ShardID:    sharding.GetShardID(task.UserID),
		Metadata:   metadata,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal activity event failed: %v", err)
		return
	}
	if err := s.Publish(sharding.ActivitySubject(task.UserID), payload); err != nil {
		log.Printf("publish activity event failed: %v", err)
	}
}
