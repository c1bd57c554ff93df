package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/tasks"
	"github.com/gtdflow/gtdflow/internal/contracts"
	"github.com/gtdflow/gtdflow/internal/platform/metrics"
	"github.com/gtdflow/gtdflow/internal/sharding"
	"github.com/nats-io/nuid"
)

var (
	ErrRecipientsRequired = errors.New("at least one recipient is required")
	ErrInvalidRecipient   = errors.New("recipient is not a valid email address")
	ErrNotScheduled       = errors.New("task has no scheduled time")
	ErrDispatchFailed     = errors.New("invite dispatch failed")
)

// TaskStore is the slice of the task repository the invite flow needs.
type TaskStore interface {
	GetTask(ctx context.Context, userID, taskID string) (tasks.Task, error)
	MarkInviteSent(ctx context.Context, userID, taskID, recipients string, at time.Time) error
}

// Service runs the invite flow: look the task up, encode the calendar
// attachment, compose the email, dispatch it, then record the send and emit
// an activity event. Dispatch and recording are not atomic; a crash between
// the two leaves a delivered invite unrecorded and a later retry sends a
// duplicate, which calendar clients dedupe poorly but tolerate.
type Service struct {
	Tasks    TaskStore
	Mailer   Mailer
	Encoder  *Encoder
	Composer Composer
	Publish  tasks.PublishFunc
	From     string
	Now      func() time.Time
	NewID    func() string
}

func NewService(store TaskStore, mailer Mailer, publish tasks.PublishFunc, from string) *Service {
	return &Service{
		Tasks:   store,
		Mailer:  mailer,
		Encoder: NewEncoder(),
		Publish: publish,
		From:    from,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   nuid.Next,
	}
}

type SendResult struct {
	MessageID  string
	Recipients []string
}

// NormalizeRecipients merges the list and single-address request fields,
// trims whitespace and drops empty entries. Order is preserved.
func NormalizeRecipients(list []string, single string) ([]string, error) {
	merged := make([]string, 0, len(list)+1)
	merged = append(merged, list...)
	if single != "" {
		merged = append(merged, single)
	}

	out := make([]string, 0, len(merged))
	for _, r := range merged {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !strings.Contains(r, "@") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, r)
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrRecipientsRequired
	}
	return out, nil
}

func (s *Service) Send(ctx context.Context, userID, taskID string, recipients []string) (SendResult, error) {
	if len(recipients) == 0 {
		return SendResult{}, ErrRecipientsRequired
	}

	task, err := s.Tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return SendResult{}, err
	}
	if task.ScheduledAt == nil || task.ScheduledAt.IsZero() {
		return SendResult{}, ErrNotScheduled
	}

	ics, err := s.Encoder.Encode(task)
	if err != nil {
		return SendResult{}, err
	}

	msg := Message{
		From:     s.From,
		To:       recipients,
		Subject:  s.Composer.Subject(task),
		HTMLBody: s.Composer.Body(task),
		Attachment: &Attachment{
			Filename:    AttachmentFilename(task.Title),
			ContentType: "text/calendar",
			Content:     ics,
		},
	}

	result, err := s.Mailer.Send(ctx, msg)
	if err != nil {
		metrics.InviteSends.WithLabelValues("dispatch_error").Inc()
		log.Printf("invite dispatch for task %s failed: %v", taskID, err)
		return SendResult{}, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if err := s.Tasks.MarkInviteSent(ctx, userID, taskID, strings.Join(recipients, ", "), s.Now()); err != nil {
		metrics.InviteSends.WithLabelValues("record_error").Inc()
		return SendResult{}, fmt.Errorf("record invite send: %w", err)
	}

	metrics.InviteSends.WithLabelValues("success").Inc()
	s.publishSent(task, result.MessageID)
	return SendResult{MessageID: result.MessageID, Recipients: result.Recipients}, nil
}

func (s *Service) publishSent(task tasks.Task, messageID string) {
	if s.Publish == nil {
		return
	}
	event := contracts.ActivityEvent{
		EventID:    s.NewID(),
		TaskID:     task.ID,
		UserID:     task.UserID,
		EventType:  contracts.EventInviteSent,
		Title:      task.Title,
		OccurredAt: s.Now(),
		ShardID:    sharding.GetShardID(task.UserID),
		Metadata:   messageID,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal invite event failed: %v", err)
		return
	}
	if err := s.Publish(sharding.ActivitySubject(task.UserID), payload); err != nil {
		log.Printf("publish invite event failed: %v", err)
	}
}
