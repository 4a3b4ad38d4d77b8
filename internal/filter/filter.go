// Package filter separates user-visible prose from internal agent content.
//
// The agent decorates its output with XML-style tags: hidden tags
// (<thinking>, <private>, <debug>) whose content must never reach the
// user, and display tags (<citation>, <summary>, <source>) that are
// rewritten to Markdown. Bare absolute filesystem paths are scrubbed as a
// fallback leakage guard. The filter is incremental: a tag split across
// any number of writes is still recognized, and content inside an open
// hidden tag is buffered until the close arrives. If the stream ends
// first, the buffered content is discarded rather than exposed.
package filter

import (
	"regexp"
	"strings"
)

// maxPartialTag bounds how long a lone `<name` without a closing `>` is
// held back before being released as ordinary text.
const maxPartialTag = 256

// Options configures the tag vocabulary. Zero value means defaults.
type Options struct {
	HiddenTags  []string
	DisplayTags []string
}

var (
	defaultHidden  = []string{"thinking", "private", "debug"}
	defaultDisplay = []string{"citation", "summary", "source"}

	storedLocallyLine = regexp.MustCompile(`(?m)^Stored locally:\s*\n?`)
	absolutePathLine  = regexp.MustCompile(`(?m)^/(?:Users|home|var|tmp)/[^\s\n]+\s*$`)
	backtickedPath    = regexp.MustCompile("`/(?:Users|home|var|tmp)/[^`]+`")
	multipleNewlines  = regexp.MustCompile(`\n{3,}`)
)

// Filter carries partial-tag state across writes. One Filter per stream;
// not safe for concurrent use.
type Filter struct {
	hidden  map[string]bool
	display map[string]bool
	pending string
}

func New(opts Options) *Filter {
	f := &Filter{
		hidden:  make(map[string]bool),
		display: make(map[string]bool),
	}
	hiddenTags := opts.HiddenTags
	if hiddenTags == nil {
		hiddenTags = defaultHidden
	}
	displayTags := opts.DisplayTags
	if displayTags == nil {
		displayTags = defaultDisplay
	}
	for _, t := range hiddenTags {
		f.hidden[strings.ToLower(t)] = true
	}
	for _, t := range displayTags {
		f.display[strings.ToLower(t)] = true
	}
	return f
}

// Write filters a chunk and returns the portion that is safe to emit.
// Text that might belong to an unresolved tag is held for the next call.
func (f *Filter) Write(chunk string) string {
	if chunk == "" && f.pending == "" {
		return ""
	}
	f.pending += chunk

	boundary := f.safeBoundary()
	if boundary == 0 {
		return ""
	}
	resolved := f.pending[:boundary]
	f.pending = f.pending[boundary:]
	return f.transform(resolved)
}

// Flush drains the carried state at end of stream. Content trapped inside
// an unclosed hidden tag is dropped; an unclosed display tag is emitted
// literally since its content was never secret.
func (f *Filter) Flush() string {
	if f.pending == "" {
		return ""
	}
	rest := f.pending
	f.pending = ""

	if i, name, ok := f.firstOpenTag(rest); ok && f.hidden[name] {
		rest = rest[:i]
	}
	return f.transform(rest)
}

// safeBoundary returns the length of the longest prefix of pending that
// contains only fully resolved tags: every supported open tag in the
// prefix has its close tag, and the prefix does not end mid-token.
func (f *Filter) safeBoundary() int {
	s := f.pending

	// An open supported tag with no close yet anchors the unresolved
	// region; everything before it is safe. Matched pairs are skipped by
	// firstOpenTag, so they resolve in this write.
	if i, _, ok := f.firstOpenTag(s); ok {
		return i
	}

	// No open supported tag. Hold back a trailing partial token like
	// "<thi" or "</priv" that could complete into one, unless it has
	// grown past any plausible tag length.
	if i := trailingPartialTag(s); i != -1 && len(s)-i <= maxPartialTag {
		return i
	}
	return len(s)
}

// firstOpenTag finds the first complete open tag of a supported name that
// is not yet matched by its close tag within s.
func (f *Filter) firstOpenTag(s string) (pos int, name string, ok bool) {
	for i := 0; i < len(s); {
		lt := strings.IndexByte(s[i:], '<')
		if lt == -1 {
			return 0, "", false
		}
		lt += i
		tagName, attrEnd, complete := parseOpenTag(s[lt:])
		if !complete {
			// Incomplete token at end of buffer; no complete open tag.
			return 0, "", false
		}
		if tagName == "" || (!f.hidden[tagName] && !f.display[tagName]) {
			i = lt + 1
			continue
		}
		closeTag := "</" + tagName + ">"
		rel := indexFold(s[lt+attrEnd:], closeTag)
		if rel == -1 {
			return lt, tagName, true
		}
		// Matched pair; keep scanning after it.
		i = lt + attrEnd + rel + len(closeTag)
	}
	return 0, "", false
}

// parseOpenTag reads an open tag token at the start of s. Returns the
// lowercased tag name, the index just past '>', and whether the token
// terminated within s. A non-tag '<' yields ("", 1, true).
func parseOpenTag(s string) (name string, end int, complete bool) {
	if len(s) < 2 {
		return "", 0, false
	}
	if s[1] == '/' || !isAlpha(s[1]) {
		return "", 1, true
	}
	j := 1
	for j < len(s) && isAlpha(s[j]) {
		j++
	}
	tag := strings.ToLower(s[1:j])
	for j < len(s) {
		if s[j] == '>' {
			return tag, j + 1, true
		}
		if s[j] == '<' {
			// Never a tag; the '<' did not open one.
			return "", 1, true
		}
		j++
	}
	return "", 0, false
}

// trailingPartialTag finds the start of a trailing "</name" or "<name..."
// token with no '>' yet, or -1 if the buffer ends cleanly.
func trailingPartialTag(s string) int {
	lt := strings.LastIndexByte(s, '<')
	if lt == -1 || strings.IndexByte(s[lt:], '>') != -1 {
		return -1
	}
	rest := s[lt+1:]
	if rest == "" {
		return lt
	}
	k := 0
	if rest[0] == '/' {
		k = 1
	}
	for i := k; i < len(rest); i++ {
		if !isAlpha(rest[i]) && !isAttrChar(rest[i]) {
			return -1
		}
	}
	return lt
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isAttrChar(b byte) bool {
	switch b {
	case ' ', '\t', '=', '"', '\'', '/', '.', ':', '-', '_':
		return true
	}
	return b >= '0' && b <= '9'
}

// transform rewrites a fully resolved segment: hidden spans removed,
// display spans rewritten to Markdown, paths scrubbed, whitespace
// normalized. Running it on already-clean text is a no-op.
func (f *Filter) transform(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	for i := 0; i < len(s); {
		lt := strings.IndexByte(s[i:], '<')
		if lt == -1 {
			out.WriteString(s[i:])
			break
		}
		lt += i
		out.WriteString(s[i:lt])

		name, attrEnd, complete := parseOpenTag(s[lt:])
		if !complete || name == "" || (!f.hidden[name] && !f.display[name]) {
			out.WriteByte('<')
			i = lt + 1
			continue
		}
		closeTag := "</" + name + ">"
		rel := indexFold(s[lt+attrEnd:], closeTag)
		if rel == -1 {
			// Unmatched despite boundary checks (Flush path): drop if
			// hidden, emit literally otherwise.
			if f.hidden[name] {
				i = len(s)
				break
			}
			out.WriteByte('<')
			i = lt + 1
			continue
		}
		inner := s[lt+attrEnd : lt+attrEnd+rel]
		if f.display[name] {
			out.WriteString(renderDisplay(name, attrURL(s[lt:lt+attrEnd]), inner))
		}
		i = lt + attrEnd + rel + len(closeTag)
	}

	result := out.String()
	result = storedLocallyLine.ReplaceAllString(result, "")
	result = absolutePathLine.ReplaceAllString(result, "")
	result = backtickedPath.ReplaceAllString(result, "")
	result = multipleNewlines.ReplaceAllString(result, "\n\n")
	return result
}

// attrURL extracts a url="..." attribute from an open tag token.
func attrURL(tag string) string {
	idx := strings.Index(strings.ToLower(tag), "url=")
	if idx == -1 {
		return ""
	}
	rest := tag[idx+4:]
	if rest == "" {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	end := strings.IndexByte(rest[1:], quote)
	if end == -1 {
		return ""
	}
	return rest[1 : end+1]
}

func renderDisplay(name, url, inner string) string {
	content := strings.TrimSpace(inner)
	switch name {
	case "citation":
		if url != "" {
			return "[" + content + "](" + url + ")"
		}
		return "*" + content + "*"
	case "summary":
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return "\n" + strings.Join(lines, "\n") + "\n"
	case "source":
		if url != "" {
			return "\n📄 **Source**: [" + content + "](" + url + ")\n"
		}
		return "\n📄 **Source**: " + content + "\n"
	}
	return content
}

// indexFold is a case-insensitive strings.Index for ASCII needles.
func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
