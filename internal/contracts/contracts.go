package contracts

import "time"

// Activity event types emitted by the API and consumed by the activity sink
// and the weekly review.
const (
	EventTaskCaptured      = "task.captured"
	EventTaskPromoted      = "task.promoted"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskScheduled     = "task.scheduled"
	EventTaskCompleted     = "task.completed"
	EventTaskDeleted       = "task.deleted"
	EventInviteSent        = "invite.sent"
)

// ActivityEvent is published on the ACTIVITY stream after a successful task
// mutation or invite dispatch. Metadata carries event-specific detail, e.g.
// the provider message ID for invite.sent.
type ActivityEvent struct {
	EventID    string    `json:"event_id"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	EventType  string    `json:"event_type"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
	ShardID    int       `json:"shard_id"`
	Metadata   string    `json:"metadata,omitempty"`
}
