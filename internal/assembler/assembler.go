// Package assembler drives the full decode pipeline for one agent turn:
// raw transport bytes through framing, event decoding, content filtering,
// and plan/tool tracking, out to clean UI deltas and a final transcript.
package assembler

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/sigloome/research-agent/internal/filter"
	"github.com/sigloome/research-agent/internal/plan"
	"github.com/sigloome/research-agent/internal/stream"
	"github.com/sigloome/research-agent/internal/tools"
)

// Options configures one assembler. Tag vocabulary is per-instance so
// concurrent turns never share mutable configuration.
type Options struct {
	Filter filter.Options
	Logger zerolog.Logger
}

// Update is what one pushed chunk produced: the newly safe prose delta
// and the current plan/tool state.
type Update struct {
	DeltaText   string
	Plan        []plan.Task
	ActiveTools []tools.Active
	Done        bool
}

// Assembler owns all per-turn decode state. One instance per turn; not
// safe for concurrent use.
type Assembler struct {
	frames  stream.FrameBuffer
	decoder *stream.Decoder
	filter  *filter.Filter
	lexer   plan.MarkerLexer
	plan    *plan.Tracker
	tools   *tools.Tracker

	text strings.Builder
	done bool
}

func New(opts Options) *Assembler {
	return &Assembler{
		decoder: stream.NewDecoder(opts.Logger),
		filter:  filter.New(opts.Filter),
		plan:    plan.NewTracker(),
		tools:   tools.NewTracker(),
	}
}

// Push feeds one raw transport chunk through the pipeline.
func (a *Assembler) Push(chunk []byte) Update {
	var delta strings.Builder

	for _, frame := range a.frames.Push(chunk) {
		event, ok := a.decoder.Decode(frame)
		if !ok {
			continue
		}

		switch event.Type {
		case stream.EventText:
			delta.WriteString(a.consumeText(a.filter.Write(event.Text)))

		case stream.EventToolStart:
			a.tools.Start(event.Tool, event.ToolDescription)

		case stream.EventToolEnd:
			a.tools.Clear()

		case stream.EventResearchRaw:
			if event.Raw != "" {
				delta.WriteString("\n\n" + event.Raw + "\n\n")
			}

		case stream.EventMeta:
			a.tools.Clear()
			a.done = true
		}
	}

	a.text.WriteString(delta.String())
	return a.update(delta.String())
}

// consumeText runs filtered prose through the marker lexer, folds the
// extracted markers into plan/tool state, and returns the visible rest.
func (a *Assembler) consumeText(clean string) string {
	visible, markers := a.lexer.Write(clean)

	// Prose arriving is the signal that no tool is still executing; the
	// markers may immediately start a new one.
	if visible != "" {
		a.tools.Clear()
	}
	for _, m := range markers {
		if m.Kind == plan.MarkerToolLog {
			a.tools.Start(m.Payload, "")
			continue
		}
		a.plan.Apply(m)
	}
	return visible
}

// Done reports whether an end-of-turn meta frame has been seen.
func (a *Assembler) Done() bool {
	return a.done
}

// Text returns the accumulated clean transcript so far.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Plan returns the current plan snapshot.
func (a *Assembler) Plan() []plan.Task {
	return a.plan.Tasks()
}

// Finalize drains all carried filter and lexer state and returns the
// complete transcript. Safe to call when the transport died without a
// meta frame: whatever accumulated is still returned, never lost.
func (a *Assembler) Finalize() string {
	tail := a.consumeText(a.filter.Flush())
	tail += a.lexer.Flush()
	a.text.WriteString(tail)
	a.done = true
	return a.text.String()
}

func (a *Assembler) update(delta string) Update {
	return Update{
		DeltaText:   delta,
		Plan:        a.plan.Tasks(),
		ActiveTools: a.tools.Active(),
		Done:        a.done,
	}
}
