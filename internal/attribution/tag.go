package attribution

import (
	"strings"
	"time"
)

const (
	tagSeparator = " - "

	// TagTimeLayout formats the label written by Tag.
	TagTimeLayout = "02.01.2006 15:04:05"
)

// TagLine is a parsed authorship tag.
type TagLine struct {
	// Raw is the bracketed part of the line, e.g. "[alice - 10:00]".
	Raw   string
	Name  string
	Label string
	// Body is whatever follows the closing bracket on the same line.
	Body string
}

// Bare reports whether the tag has no text of its own after the bracket.
func (t TagLine) Bare() bool {
	return strings.TrimSpace(t.Body) == ""
}

// ParseTagLine recognizes "[<name> - <label>]" at the very start of line.
// The first "]" closes the tag and the first " - " inside it separates the
// name from the label. Both fields are trimmed and must be non-empty.
func ParseTagLine(line string) (TagLine, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, "[") {
		return TagLine{}, false
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return TagLine{}, false
	}
	inner := line[1:end]
	sep := strings.Index(inner, tagSeparator)
	if sep < 0 {
		return TagLine{}, false
	}
	name := strings.TrimSpace(inner[:sep])
	label := strings.TrimSpace(inner[sep+len(tagSeparator):])
	if name == "" || label == "" {
		return TagLine{}, false
	}
	return TagLine{
		Raw:   line[:end+1],
		Name:  name,
		Label: label,
		Body:  line[end+1:],
	}, true
}

// Tag renders the header line that opens a block written by authorName.
func Tag(authorName string, now time.Time) string {
	return "[" + authorName + tagSeparator + now.Format(TagTimeLayout) + "]\n"
}

// AppendBlock appends newText to existing as a block owned by authorName.
//
// Blank content is replaced by a tag followed by the text. When the last
// non-empty line is already a bare tag the text continues under it; otherwise
// a fresh tag is written on a new line so the previous block stays separable.
// The last line is matched with the same grammar Parse uses, so an indented
// bracket is not a tag here either.
func AppendBlock(existing, authorName, newText string, now time.Time) string {
	if strings.TrimSpace(existing) == "" {
		return Tag(authorName, now) + newText
	}
	if tag, ok := ParseTagLine(lastNonEmptyLine(existing)); ok && tag.Bare() {
		return existing + "\n" + newText
	}
	return existing + "\n" + Tag(authorName, now) + newText
}

// ContinueFromLast prepares existing for more typing by authorName without
// stacking a second tag on top of a bare one.
func ContinueFromLast(existing, authorName string, now time.Time) string {
	return AppendBlock(existing, authorName, "", now)
}

func lastNonEmptyLine(content string) string {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
