package stream

// EventType discriminates decoded stream events.
type EventType int

const (
	// EventText is a literal assistant text token.
	EventText EventType = iota
	// EventToolStart announces a tool invocation.
	EventToolStart
	// EventToolEnd marks the end of any in-flight tool activity.
	EventToolEnd
	// EventResearchRaw is a pass-through marker re-embedded into the text.
	EventResearchRaw
	// EventMeta is the end-of-turn signal.
	EventMeta
	// EventIgnored is a well-formed frame of a type this decoder does not
	// handle. New upstream event types land here instead of failing.
	EventIgnored
)

// Event is the decoded form of a Frame.
type Event struct {
	Type EventType

	// Text is set for EventText.
	Text string
	// Tool and ToolDescription are set for EventToolStart.
	Tool            string
	ToolDescription string
	// Raw is set for EventResearchRaw.
	Raw string
}

// dataPayload covers every structured payload shape the wire carries.
// `d:` frames use type/tool/description/raw; legacy `data:` frames may
// instead carry content or text fields.
type dataPayload struct {
	Type        string `json:"type"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	Raw         string `json:"raw"`
	Content     string `json:"content"`
	Text        string `json:"text"`
}
