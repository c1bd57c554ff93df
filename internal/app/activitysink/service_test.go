package activitysink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gtdflow/gtdflow/internal/contracts"
	"github.com/gtdflow/gtdflow/internal/sharding"
)

type fakeEventRepo struct {
	events map[string]StoredEvent
	err    error
}

func (f *fakeEventRepo) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeEventRepo) InsertEvent(ctx context.Context, event StoredEvent) error {
	if f.err != nil {
		return f.err
	}
	if _, exists := f.events[event.EventID]; exists {
		return nil
	}
	f.events[event.EventID] = event
	return nil
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[string]StoredEvent{}}
}

func validEvent() contracts.ActivityEvent {
	return contracts.ActivityEvent{
		EventID:    "ev-1",
		TaskID:     "t1",
		UserID:     "u1",
		EventType:  contracts.EventTaskCaptured,
		Title:      "Buy milk",
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		ShardID:    sharding.GetShardID("u1"),
	}
}

func TestHandleStoresEvent(t *testing.T) {
	repo := newFakeEventRepo()
	svc := NewService(repo)

	payload, _ := json.Marshal(validEvent())
	if got := svc.Handle(context.Background(), sharding.ActivitySubject("u1"), payload); got != Ack {
		t.Fatalf("expected Ack, got %v", got)
	}
	stored, ok := repo.events["ev-1"]
	if !ok {
		t.Fatal("event not stored")
	}
	if stored.EventType != contracts.EventTaskCaptured || stored.UserID != "u1" {
		t.Fatalf("unexpected stored event: %+v", stored)
	}
}

func TestHandleRedelivery(t *testing.T) {
	repo := newFakeEventRepo()
	svc := NewService(repo)
	payload, _ := json.Marshal(validEvent())
	subject := sharding.ActivitySubject("u1")

	svc.Handle(context.Background(), subject, payload)
	if got := svc.Handle(context.Background(), subject, payload); got != Ack {
		t.Fatalf("redelivery should still ack, got %v", got)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(repo.events))
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	svc := NewService(newFakeEventRepo())
	if got := svc.Handle(context.Background(), "app.activity.1.user.u1", []byte("{not json")); got != Term {
		t.Fatalf("expected Term for malformed payload, got %v", got)
	}
}

func TestHandleIncompleteEvent(t *testing.T) {
	svc := NewService(newFakeEventRepo())
	event := validEvent()
	event.EventID = ""
	payload, _ := json.Marshal(event)
	if got := svc.Handle(context.Background(), "app.activity.1.user.u1", payload); got != Term {
		t.Fatalf("expected Term for incomplete event, got %v", got)
	}
}

func TestHandleInsertFailure(t *testing.T) {
	repo := newFakeEventRepo()
	repo.err = errors.New("connection reset")
	svc := NewService(repo)

	payload, _ := json.Marshal(validEvent())
	if got := svc.Handle(context.Background(), sharding.ActivitySubject("u1"), payload); got != Nak {
		t.Fatalf("expected Nak on insert failure, got %v", got)
	}
}

func TestHandleFillsShardFromSubject(t *testing.T) {
	repo := newFakeEventRepo()
	svc := NewService(repo)

	event := validEvent()
	event.ShardID = 0
	payload, _ := json.Marshal(event)
	if got := svc.Handle(context.Background(), "app.activity.42.user.u1", payload); got != Ack {
		t.Fatalf("expected Ack, got %v", got)
	}
	if repo.events["ev-1"].ShardID != 42 {
		t.Fatalf("expected shard 42 from subject, got %d", repo.events["ev-1"].ShardID)
	}
}
