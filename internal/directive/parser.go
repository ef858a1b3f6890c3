package directive

import (
	"sort"
	"strings"
)

// tagSpec binds a wire tag name to its operation kind.
type tagSpec struct {
	name string // tag name without angle brackets
	kind Kind
}

// Longer names first so prefix collisions resolve deterministically.
var tagSpecs = []tagSpec{
	{"prestige-add-integration", KindAddIntegration},
	{"prestige-add-dependency", KindAddDependency},
	{"prestige-chat-summary", KindChatSummary},
	{"prestige-command", KindCommand},
	{"prestige-delete", KindDelete},
	{"prestige-rename", KindRename},
	{"prestige-write", KindWrite},
	{"think", KindThink},
}

// Parse scans the accumulated text for directive tags and returns the
// typed operations in source order. An operation whose closing marker has
// not arrived yet is pending; everything else is finished. Parse is pure
// and idempotent, and a finished operation's content never changes when
// more text is appended to the buffer.
func Parse(text string) []*Operation {
	return parse(text, false)
}

// ParseComplete parses a fully received response. Tags that never closed
// can no longer finish, so they are marked aborted instead of pending.
func ParseComplete(text string) []*Operation {
	return parse(text, true)
}

func parse(text string, final bool) []*Operation {
	var ops []*Operation

	pos := 0
	for pos < len(text) {
		open := strings.IndexByte(text[pos:], '<')
		if open < 0 {
			break
		}
		open += pos

		spec, ok := matchTag(text, open)
		if !ok {
			pos = open + 1
			continue
		}

		op, next, complete := parseTag(text, open, spec)
		if !complete && final {
			op.State = StateAborted
		}
		ops = append(ops, op)

		if !complete {
			// The rest of the buffer is this operation's in-flight
			// content; nothing after it can be a sibling directive yet.
			break
		}
		pos = next
	}

	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Position < ops[j].Position
	})
	return ops
}

// matchTag checks whether an opening marker for a known tag starts at
// offset. The name must be followed by whitespace, '>' or '/', or the end
// of the buffer (still-streaming header).
func matchTag(text string, offset int) (tagSpec, bool) {
	rest := text[offset+1:]
	for _, spec := range tagSpecs {
		if !strings.HasPrefix(rest, spec.name) {
			continue
		}
		tail := rest[len(spec.name):]
		if tail == "" {
			return spec, true
		}
		switch tail[0] {
		case ' ', '\t', '\n', '\r', '>', '/':
			return spec, true
		}
	}
	return tagSpec{}, false
}

// parseTag parses one directive starting at the opening '<'. It returns
// the operation, the offset just past the closing marker, and whether the
// directive is complete. Incomplete directives carry best-effort
// attributes and partial content.
func parseTag(text string, start int, spec tagSpec) (*Operation, int, bool) {
	op := &Operation{
		Kind:     spec.kind,
		State:    StatePending,
		Position: start,
	}

	headerStart := start + 1 + len(spec.name)
	attrs, headerEnd, selfClosed, headerComplete := parseAttributes(text, headerStart)
	applyAttributes(op, attrs)

	if !headerComplete {
		return op, len(text), false
	}
	if selfClosed {
		op.State = StateFinished
		return op, headerEnd, true
	}

	closeMarker := "</" + spec.name + ">"
	closeIdx := strings.Index(text[headerEnd:], closeMarker)
	if closeIdx < 0 {
		applyContent(op, text[headerEnd:])
		return op, len(text), false
	}
	closeIdx += headerEnd

	applyContent(op, text[headerEnd:closeIdx])
	op.State = StateFinished
	return op, closeIdx + len(closeMarker), true
}

// parseAttributes reads key="value" pairs until the closing '>' of the
// opening marker. It reports whether the marker itself was complete and
// whether it was self-closing.
func parseAttributes(text string, pos int) (map[string]string, int, bool, bool) {
	attrs := make(map[string]string)

	for pos < len(text) {
		// Skip whitespace between attributes.
		for pos < len(text) && isSpace(text[pos]) {
			pos++
		}
		if pos >= len(text) {
			return attrs, pos, false, false
		}

		switch text[pos] {
		case '>':
			return attrs, pos + 1, false, true
		case '/':
			if pos+1 < len(text) && text[pos+1] == '>' {
				return attrs, pos + 2, true, true
			}
			pos++
			continue
		}

		// Attribute name up to '='.
		nameStart := pos
		for pos < len(text) && text[pos] != '=' && text[pos] != '>' && !isSpace(text[pos]) {
			pos++
		}
		if pos >= len(text) {
			return attrs, pos, false, false
		}
		name := text[nameStart:pos]

		if text[pos] != '=' {
			// Bare attribute without a value; tolerate and move on.
			continue
		}
		pos++

		if pos >= len(text) || text[pos] != '"' {
			// Value not quoted yet (mid-stream) or malformed.
			if pos >= len(text) {
				return attrs, pos, false, false
			}
			continue
		}
		pos++

		valueEnd := strings.IndexByte(text[pos:], '"')
		if valueEnd < 0 {
			// Value still streaming; keep the partial text so previews
			// can show something, completeness stays false.
			attrs[name] = text[pos:]
			return attrs, len(text), false, false
		}
		attrs[name] = text[pos : pos+valueEnd]
		pos += valueEnd + 1
	}

	return attrs, pos, false, false
}

func applyAttributes(op *Operation, attrs map[string]string) {
	switch op.Kind {
	case KindWrite:
		op.Path = attrs["path"]
		op.Description = attrs["description"]
	case KindRename:
		op.From = attrs["from"]
		op.To = attrs["to"]
	case KindDelete:
		op.Path = attrs["path"]
	case KindAddDependency:
		op.Packages = splitPackages(attrs["packages"])
	case KindCommand:
		op.CommandType = strings.TrimSpace(attrs["type"])
	case KindAddIntegration:
		op.Provider = attrs["provider"]
	}
}

func applyContent(op *Operation, content string) {
	switch op.Kind {
	case KindWrite, KindAddIntegration:
		op.Content = content
	case KindChatSummary, KindThink:
		op.Text = strings.TrimSpace(content)
	}
}

// splitPackages splits a packages attribute on whitespace and commas.
func splitPackages(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ','
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// VisibleText strips think spans from the text shown to users. Finished
// spans are removed whole; an unterminated trailing span truncates the
// output at its opening marker.
func VisibleText(text string) string {
	const openMarker = "<think>"
	const closeMarker = "</think>"

	var b strings.Builder
	pos := 0
	for {
		open := strings.Index(text[pos:], openMarker)
		if open < 0 {
			b.WriteString(text[pos:])
			break
		}
		open += pos
		b.WriteString(text[pos:open])

		closeIdx := strings.Index(text[open:], closeMarker)
		if closeIdx < 0 {
			break
		}
		pos = open + closeIdx + len(closeMarker)
	}
	return b.String()
}
