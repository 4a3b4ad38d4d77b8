package stream

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, f Frame) (Event, bool) {
	t.Helper()
	return NewDecoder(zerolog.Nop()).Decode(f)
}

func TestDecodeTextFrame(t *testing.T) {
	ev, ok := decode(t, Frame{Kind: FrameText, Payload: `"Hello world"`})
	require.True(t, ok)
	assert.Equal(t, EventText, ev.Type)
	assert.Equal(t, "Hello world", ev.Text)
}

func TestDecodeMalformedTextFrameDropped(t *testing.T) {
	_, ok := decode(t, Frame{Kind: FrameText, Payload: `"unterminated`})
	assert.False(t, ok)

	// A JSON value that is not a string is just as malformed here.
	_, ok = decode(t, Frame{Kind: FrameText, Payload: `42`})
	assert.False(t, ok)
}

func TestDecodeDataFrames(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		legacy  bool
		want    Event
	}{
		{
			name:    "tool_start",
			payload: `{"type":"tool_start","tool":"search","description":"Searching ArXiv"}`,
			want:    Event{Type: EventToolStart, Tool: "search", ToolDescription: "Searching ArXiv"},
		},
		{
			name:    "tool_usage alias",
			payload: `{"type":"tool_usage","tool":"fetch","description":"d"}`,
			want:    Event{Type: EventToolStart, Tool: "fetch", ToolDescription: "d"},
		},
		{
			name:    "tool_end",
			payload: `{"type":"tool_end"}`,
			want:    Event{Type: EventToolEnd},
		},
		{
			name:    "research_event",
			payload: `{"type":"research_event","raw":"<<<PlanInit: []>>>"}`,
			want:    Event{Type: EventResearchRaw, Raw: "<<<PlanInit: []>>>"},
		},
		{
			name:    "meta",
			payload: `{"type":"meta","info":{"cost":0.01}}`,
			want:    Event{Type: EventMeta},
		},
		{
			name:    "unknown type ignored",
			payload: `{"type":"telemetry_v2","blob":"x"}`,
			want:    Event{Type: EventIgnored},
		},
		{
			name:    "legacy done sentinel",
			payload: `[DONE]`,
			legacy:  true,
			want:    Event{Type: EventMeta},
		},
		{
			name:    "legacy content payload",
			payload: `{"type":"content","content":"hi"}`,
			legacy:  true,
			want:    Event{Type: EventText, Text: "hi"},
		},
		{
			name:    "legacy bare text payload",
			payload: `{"text":"hi"}`,
			legacy:  true,
			want:    Event{Type: EventText, Text: "hi"},
		},
		{
			name:    "content type on d prefix is not text",
			payload: `{"type":"content","content":"hi"}`,
			want:    Event{Type: EventIgnored},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := decode(t, Frame{Kind: FrameData, Payload: tt.payload, Legacy: tt.legacy})
			require.True(t, ok)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeMalformedDataFrameDropped(t *testing.T) {
	_, ok := decode(t, Frame{Kind: FrameData, Payload: `{"type":`})
	assert.False(t, ok)
}

func TestDecodeUnknownFrameDropped(t *testing.T) {
	_, ok := decode(t, Frame{Kind: FrameUnknown, Payload: "whatever"})
	assert.False(t, ok)
}
