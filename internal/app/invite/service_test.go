package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gtdflow/gtdflow/internal/app/tasks"
	"github.com/gtdflow/gtdflow/internal/contracts"
)

type fakeTaskStore struct {
	tasks  map[string]tasks.Task
	marked map[string]string
}

func newFakeTaskStore(items ...tasks.Task) *fakeTaskStore {
	store := &fakeTaskStore{tasks: map[string]tasks.Task{}, marked: map[string]string{}}
	for _, item := range items {
		store.tasks[item.ID] = item
	}
	return store
}

func (f *fakeTaskStore) GetTask(ctx context.Context, userID, taskID string) (tasks.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return tasks.Task{}, tasks.ErrTaskNotFound
	}
	return t, nil
}

func (f *fakeTaskStore) MarkInviteSent(ctx context.Context, userID, taskID, recipients string, at time.Time) error {
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return tasks.ErrTaskNotFound
	}
	t.CalendarInviteSent = true
	t.InviteRecipients = recipients
	f.tasks[taskID] = t
	f.marked[taskID] = recipients
	return nil
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	if f.err != nil {
		return DeliveryResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return DeliveryResult{MessageID: "msg-1@test", Recipients: msg.To}, nil
}

func newInviteServiceForTests(store *fakeTaskStore, mailer *fakeMailer) (*Service, *[]contracts.ActivityEvent) {
	published := &[]contracts.ActivityEvent{}
	svc := NewService(store, mailer, func(subject string, payload []byte) error {
		var ev contracts.ActivityEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		*published = append(*published, ev)
		return nil
	}, "invites@gtdflow.app")
	svc.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	svc.Encoder = testEncoder(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	seq := 0
	svc.NewID = func() string {
		seq++
		return fmt.Sprintf("ev-%d", seq)
	}
	return svc, published
}

func TestSendInvite(t *testing.T) {
	store := newFakeTaskStore(scheduledTask())
	mailer := &fakeMailer{}
	svc, published := newInviteServiceForTests(store, mailer)

	result, err := svc.Send(context.Background(), "u1", "abc123", []string{"a@example.com", "b@example.com"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if result.MessageID != "msg-1@test" || len(result.Recipients) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.From != "invites@gtdflow.app" {
		t.Errorf("unexpected from: %q", msg.From)
	}
	if msg.Attachment == nil {
		t.Fatal("missing attachment")
	}
	if msg.Attachment.Filename != "Write_report.ics" {
		t.Errorf("unexpected filename: %q", msg.Attachment.Filename)
	}
	if msg.Attachment.ContentType != "text/calendar" {
		t.Errorf("unexpected content type: %q", msg.Attachment.ContentType)
	}

	if got := store.marked["abc123"]; got != "a@example.com, b@example.com" {
		t.Errorf("recipients not recorded: %q", got)
	}
	if len(*published) != 1 {
		t.Fatalf("expected one activity event, got %d", len(*published))
	}
	event := (*published)[0]
	if event.EventType != contracts.EventInviteSent || event.Metadata != "msg-1@test" {
		t.Errorf("unexpected activity event: %+v", event)
	}
}

func TestSendInvite_NotScheduled(t *testing.T) {
	task := scheduledTask()
	task.ScheduledAt = nil
	store := newFakeTaskStore(task)
	mailer := &fakeMailer{}
	svc, _ := newInviteServiceForTests(store, mailer)

	_, err := svc.Send(context.Background(), "u1", "abc123", []string{"a@example.com"})
	if !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("expected ErrNotScheduled, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Error("mailer should not be called for an unscheduled task")
	}
}

func TestSendInvite_TaskNotFound(t *testing.T) {
	svc, _ := newInviteServiceForTests(newFakeTaskStore(), &fakeMailer{})

	_, err := svc.Send(context.Background(), "u1", "missing", []string{"a@example.com"})
	if !errors.Is(err, tasks.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestSendInvite_DispatchFailure(t *testing.T) {
	store := newFakeTaskStore(scheduledTask())
	mailer := &fakeMailer{err: errors.New("connection refused")}
	svc, published := newInviteServiceForTests(store, mailer)

	_, err := svc.Send(context.Background(), "u1", "abc123", []string{"a@example.com"})
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	if store.tasks["abc123"].CalendarInviteSent {
		t.Error("task must not be marked sent when dispatch fails")
	}
	if len(*published) != 0 {
		t.Error("no activity event expected when dispatch fails")
	}
}

func TestNormalizeRecipients(t *testing.T) {
	got, err := NormalizeRecipients([]string{" a@example.com ", "", "b@example.com"}, "c@example.com")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if len(got) != len(want) {
		t.Fatalf("unexpected recipients: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected recipients: %v", got)
		}
	}

	if _, err := NormalizeRecipients(nil, ""); !errors.Is(err, ErrRecipientsRequired) {
		t.Fatalf("expected ErrRecipientsRequired, got %v", err)
	}
	if _, err := NormalizeRecipients([]string{"not-an-address"}, ""); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}
