package stream

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// legacyDone is the terminal sentinel on the `data:` prefix.
const legacyDone = "[DONE]"

// Decoder turns classified frames into typed events. Decode failures are
// local: a malformed frame is logged and dropped so one bad line can never
// blank out the rest of a turn.
type Decoder struct {
	log zerolog.Logger
}

func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode returns the event for a frame and whether the frame produced one.
func (d *Decoder) Decode(f Frame) (Event, bool) {
	switch f.Kind {
	case FrameText:
		return d.decodeText(f)
	case FrameData:
		return d.decodeData(f)
	default:
		return Event{}, false
	}
}

func (d *Decoder) decodeText(f Frame) (Event, bool) {
	var text string
	if err := json.Unmarshal([]byte(f.Payload), &text); err != nil {
		d.log.Debug().Err(err).Str("payload", truncate(f.Payload, 120)).Msg("dropping malformed text frame")
		return Event{}, false
	}
	return Event{Type: EventText, Text: text}, true
}

func (d *Decoder) decodeData(f Frame) (Event, bool) {
	if f.Legacy && f.Payload == legacyDone {
		return Event{Type: EventMeta}, true
	}

	var p dataPayload
	if err := json.Unmarshal([]byte(f.Payload), &p); err != nil {
		d.log.Debug().Err(err).Str("payload", truncate(f.Payload, 120)).Msg("dropping malformed data frame")
		return Event{}, false
	}

	switch p.Type {
	case "tool_start", "tool_usage":
		return Event{Type: EventToolStart, Tool: p.Tool, ToolDescription: p.Description}, true
	case "tool_end":
		return Event{Type: EventToolEnd}, true
	case "research_event":
		return Event{Type: EventResearchRaw, Raw: p.Raw}, true
	case "meta":
		return Event{Type: EventMeta}, true
	case "content":
		if f.Legacy && p.Content != "" {
			return Event{Type: EventText, Text: p.Content}, true
		}
	}

	// Legacy adapters emitted bare {"text": "..."} payloads.
	if f.Legacy && p.Text != "" {
		return Event{Type: EventText, Text: p.Text}, true
	}

	return Event{Type: EventIgnored}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
