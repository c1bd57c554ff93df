package activitysink

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gtdflow/gtdflow/internal/contracts"
	"github.com/gtdflow/gtdflow/internal/sharding"
)

// Disposition tells the subscriber loop how to settle a message.
type Disposition int

const (
	// Ack removes the message from the stream.
	Ack Disposition = iota
	// Nak asks for redelivery after a transient failure.
	Nak
	// Term discards a poison message that can never succeed.
	Term
)

// Service persists activity events consumed from JetStream.
type Service struct {
	Repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{Repo: repo}
}

func (s *Service) Handle(ctx context.Context, subject string, payload []byte) Disposition {
	var event contracts.ActivityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("discarding malformed activity payload on %s: %v", subject, err)
		return Term
	}
	if event.EventID == "" || event.UserID == "" || event.EventType == "" {
		log.Printf("discarding incomplete activity event on %s: %+v", subject, event)
		return Term
	}
	if event.ShardID == 0 {
		event.ShardID = sharding.ShardFromSubject(event.UserID, subject)
	}

	stored := StoredEvent{
		EventID:    event.EventID,
		TaskID:     event.TaskID,
		UserID:     event.UserID,
		EventType:  event.EventType,
		Title:      event.Title,
		OccurredAt: event.OccurredAt,
		ShardID:    event.ShardID,
		Metadata:   event.Metadata,
	}
	if err := s.Repo.InsertEvent(ctx, stored); err != nil {
		log.Printf("insert activity event %s failed: %v", event.EventID, err)
		return Nak
	}
	return Ack
}
