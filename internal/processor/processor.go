// Package processor archives raw turn streams off the hot path. The chat
// handler publishes transport chunks to JetStream; this consumer
// re-frames them and bulk-inserts the frame log for replay and debugging.
package processor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/sigloome/research-agent/internal/jetstream"
	"github.com/sigloome/research-agent/internal/storage"
	"github.com/sigloome/research-agent/internal/stream"
)

// Processor consumes the turn relay and writes frame archives.
type Processor struct {
	writer *storage.BatchWriter

	mu    sync.Mutex
	turns map[string]*turnState
}

type turnState struct {
	buffer stream.FrameBuffer
	frames []stream.Frame
	ts     time.Time
}

func New(writer *storage.BatchWriter) *Processor {
	return &Processor{
		writer: writer,
		turns:  make(map[string]*turnState),
	}
}

// StartConsumer subscribes to the turn relay and processes chunks until
// the context is cancelled.
func (p *Processor) StartConsumer(ctx context.Context, js nats.JetStreamContext) {
	sub, err := js.Subscribe("research.turn.>", p.handle, nats.AckExplicit())
	if err != nil {
		log.Error().Err(err).Msg("failed to subscribe to turn relay")
		return
	}
	defer sub.Unsubscribe()
	<-ctx.Done()
}

func (p *Processor) handle(msg *nats.Msg) {
	defer msg.Ack()

	turnID, done := parseSubject(msg.Subject)
	if turnID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.turns[turnID]
	if !ok {
		state = &turnState{ts: time.Now()}
		p.turns[turnID] = state
	}

	if !done {
		state.frames = append(state.frames, state.buffer.Push(msg.Data)...)
		return
	}

	delete(p.turns, turnID)
	p.archive(turnID, state)
}

func (p *Processor) archive(turnID string, state *turnState) {
	id, err := uuid.Parse(turnID)
	if err != nil {
		log.Warn().Str("turn_id", turnID).Msg("unparseable turn id on relay")
		return
	}
	if len(state.frames) == 0 {
		return
	}
	p.writer.Enqueue(storage.InsertTurnFramesJob(id, state.ts, state.frames))

	log.Debug().
		Str("turn_id", turnID).
		Int("frames", len(state.frames)).
		Msg("turn frame archive queued")
}

// parseSubject splits `research.turn.<id>` and `research.turn.<id>.done`.
func parseSubject(subject string) (turnID string, done bool) {
	rest, ok := strings.CutPrefix(subject, jetstream.SubjectPrefix)
	if !ok {
		return "", false
	}
	if id, isDone := strings.CutSuffix(rest, ".done"); isDone {
		return id, true
	}
	if strings.Contains(rest, ".") {
		return "", false
	}
	return rest, false
}
