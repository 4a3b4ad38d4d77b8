package jetstream

import (
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "RESEARCH"
	SubjectPrefix = "research.turn."
)

// EnsureStream creates the turn-relay stream if it does not exist yet.
// Raw turn chunks are work-queued to the frame archiver and expire after
// a day regardless.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"research.>"},
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// ChunkSubject carries the raw transport chunks of one turn.
func ChunkSubject(turnID string) string {
	return SubjectPrefix + turnID
}

// DoneSubject signals that a turn's transport has closed.
func DoneSubject(turnID string) string {
	return SubjectPrefix + turnID + ".done"
}
