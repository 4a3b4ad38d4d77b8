package stream

import (
	"bytes"
	"strings"
)

// FrameKind classifies a wire line by its prefix.
type FrameKind int

const (
	// FrameText is a `0:` line carrying a JSON-encoded text token.
	FrameText FrameKind = iota
	// FrameData is a `d:` or `data:` line carrying a structured event.
	FrameData
	// FrameUnknown is any line with an unrecognized prefix.
	FrameUnknown
)

// Frame is one complete wire line with its prefix stripped.
type Frame struct {
	Kind    FrameKind
	Payload string
	// Legacy marks frames that arrived with the alternate `data:` prefix,
	// whose payload grammar differs slightly from `d:`.
	Legacy bool
}

// FrameBuffer assembles raw transport chunks into complete frames.
// Chunk boundaries carry no meaning: a line split across any number of
// pushes is emitted exactly once, after its terminating newline arrives.
type FrameBuffer struct {
	buf []byte
}

// Push appends a raw chunk and returns every frame completed by it.
// The trailing unterminated line is retained for the next call.
func (b *FrameBuffer) Push(chunk []byte) []Frame {
	b.buf = append(b.buf, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(b.buf, '\n')
		if idx == -1 {
			break
		}

		line := string(b.buf[:idx])
		b.buf = b.buf[idx+1:]
		line = strings.TrimRight(line, "\r")

		if line == "" {
			continue
		}
		frames = append(frames, classify(line))
	}
	return frames
}

// Pending reports whether an unterminated line is being carried.
func (b *FrameBuffer) Pending() bool {
	return len(b.buf) > 0
}

func classify(line string) Frame {
	switch {
	case strings.HasPrefix(line, "0:"):
		return Frame{Kind: FrameText, Payload: strings.TrimSpace(line[2:])}
	case strings.HasPrefix(line, "data:"):
		return Frame{Kind: FrameData, Payload: strings.TrimSpace(line[5:]), Legacy: true}
	case strings.HasPrefix(line, "d:"):
		return Frame{Kind: FrameData, Payload: strings.TrimSpace(line[2:])}
	default:
		return Frame{Kind: FrameUnknown, Payload: line}
	}
}
