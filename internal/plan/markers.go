package plan

import "strings"

// MarkerKind identifies an in-band marker family.
type MarkerKind int

const (
	// MarkerPlanInit announces the initial task list.
	MarkerPlanInit MarkerKind = iota
	// MarkerPlanUpdate appends tasks to an existing plan.
	MarkerPlanUpdate
	// MarkerStepStart marks a task as running.
	MarkerStepStart
	// MarkerStepEnd marks a task as completed.
	MarkerStepEnd
	// MarkerToolLog is the legacy inline `*Running tool: name*` form.
	MarkerToolLog
)

// Marker is one extracted in-band marker. Payload is the raw text between
// the marker name and its terminator; callers parse it per kind.
type Marker struct {
	Kind    MarkerKind
	Payload string
}

const (
	markerOpen   = "<<<"
	markerClose  = ">>>"
	toolLogOpen  = "*Running tool: "
	toolLogClose = "*"

	// maxPendingMarker bounds how much text an unterminated marker can
	// hold back before it is released as ordinary prose.
	maxPendingMarker = 8 * 1024
)

var markerNames = map[string]MarkerKind{
	"PlanInit":   MarkerPlanInit,
	"PlanUpdate": MarkerPlanUpdate,
	"StepStart":  MarkerStepStart,
	"StepEnd":    MarkerStepEnd,
}

// MarkerLexer extracts plan/step/tool-log markers from a text stream in a
// single pass, tolerating markers split across chunk boundaries. Text that
// might be the head of a marker is carried to the next write.
type MarkerLexer struct {
	pending string
}

// Write consumes a chunk and returns the prose with markers removed, plus
// the markers completed by this chunk, in order of appearance.
func (l *MarkerLexer) Write(chunk string) (string, []Marker) {
	l.pending += chunk

	var out strings.Builder
	var markers []Marker
	s := l.pending

	for len(s) > 0 {
		open, kind := nextOpener(s)
		if open == -1 {
			break
		}
		out.WriteString(s[:open])
		s = s[open:]

		var m Marker
		var consumed int
		var complete bool
		if kind == MarkerToolLog {
			m, consumed, complete = lexToolLog(s)
		} else {
			m, consumed, complete = lexBracketMarker(s)
		}
		if !complete {
			if len(s) > maxPendingMarker {
				// Never terminated; give it back as prose.
				out.WriteString(s)
				s = ""
			}
			break
		}
		if consumed == 0 {
			// False alarm (e.g. a lone '*'); emit one byte and rescan.
			out.WriteByte(s[0])
			s = s[1:]
			continue
		}
		markers = append(markers, m)
		s = s[consumed:]
	}

	if nextOpenerIdx, _ := nextOpener(s); nextOpenerIdx == -1 {
		// No marker head left; hold back only a trailing prefix that
		// could grow into an opener.
		hold := trailingOpenerPrefix(s)
		out.WriteString(s[:len(s)-hold])
		s = s[len(s)-hold:]
	}

	l.pending = s
	return out.String(), markers
}

// Flush releases any carried text at end of stream. An unterminated
// marker is returned as prose; it was never going to complete.
func (l *MarkerLexer) Flush() string {
	rest := l.pending
	l.pending = ""
	return rest
}

// nextOpener finds the earliest position where a marker could begin.
func nextOpener(s string) (int, MarkerKind) {
	bracket := strings.Index(s, markerOpen)
	tool := strings.Index(s, toolLogOpen)
	switch {
	case bracket == -1 && tool == -1:
		return -1, 0
	case tool == -1 || (bracket != -1 && bracket < tool):
		return bracket, MarkerPlanInit
	default:
		return tool, MarkerToolLog
	}
}

// lexBracketMarker reads a `<<<Name: payload>>>` marker at the start of s.
func lexBracketMarker(s string) (Marker, int, bool) {
	end := strings.Index(s, markerClose)
	if end == -1 {
		return Marker{}, 0, false
	}
	body := s[len(markerOpen):end]
	consumed := end + len(markerClose)

	name, payload, found := strings.Cut(body, ":")
	if !found {
		name = body
	}
	kind, known := markerNames[strings.TrimSpace(name)]
	if !known {
		// Unknown marker: leave it alone so future vocabularies render
		// as-is instead of vanishing.
		return Marker{}, 0, true
	}
	return Marker{Kind: kind, Payload: strings.TrimSpace(payload)}, consumed, true
}

// lexToolLog reads a `*Running tool: name*` marker at the start of s.
func lexToolLog(s string) (Marker, int, bool) {
	rest := s[len(toolLogOpen):]
	end := strings.Index(rest, toolLogClose)
	if end == -1 {
		return Marker{}, 0, false
	}
	name := strings.TrimSpace(rest[:end])
	consumed := len(toolLogOpen) + end + len(toolLogClose)
	if name == "" || strings.ContainsRune(name, '\n') {
		return Marker{}, 0, true
	}
	return Marker{Kind: MarkerToolLog, Payload: name}, consumed, true
}

// trailingOpenerPrefix reports how many trailing bytes of s form a proper
// prefix of a marker opener and must be carried to the next write.
func trailingOpenerPrefix(s string) int {
	max := len(toolLogOpen)
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		tail := s[len(s)-n:]
		if strings.HasPrefix(markerOpen, tail) || strings.HasPrefix(toolLogOpen, tail) {
			return n
		}
	}
	return 0
}
