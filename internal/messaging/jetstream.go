package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const activityStream = "ACTIVITY"

// EnsureStreams creates (or validates) the activity stream: app.activity.>
func EnsureStreams(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(activityStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      activityStream,
				Subjects:  []string{"app.activity.>"},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}
	return nil
}
