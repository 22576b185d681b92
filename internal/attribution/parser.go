package attribution

import "strings"

// Identity is a user the parser may attribute text to.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type LineKind int

const (
	// LinePlain is text with no author: before any known tag, or blank.
	LinePlain LineKind = iota
	// LineTag is an authorship tag, resolved or not.
	LineTag
	// LineAttributed is a non-blank line following a resolved tag.
	LineAttributed
)

// Line is the parse result for one line of content.
type Line struct {
	Kind LineKind
	// Text is the line itself, or the trailing body for LineTag.
	Text string
	// Tag is the tag line this line follows (or is).
	Tag string
	// AuthorName is set for tags even when the name is unknown.
	AuthorName string
	// Author is nil unless the name resolved to a known identity.
	Author *Identity
	Color  string
}

// Segment is a run of text with a single attribution.
type Segment struct {
	Author     *Identity `json:"author"`
	AuthorName string    `json:"author_name"`
	Color      string    `json:"color"`
	Tag        string    `json:"tag"`
	Text       string    `json:"text"`
}

// Parse scans content once, line by line, carrying the current author from
// the most recent resolvable tag. Identities are matched by exact username.
func Parse(content string, identities []Identity) []Line {
	if content == "" {
		return nil
	}
	known := make(map[string]Identity, len(identities))
	for _, id := range identities {
		if _, ok := known[id.Username]; !ok {
			known[id.Username] = id
		}
	}

	var (
		current    *Identity
		currentTag string
		color      = DefaultColor
	)
	raw := strings.Split(content, "\n")
	lines := make([]Line, 0, len(raw))
	for _, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		if tag, ok := ParseTagLine(text); ok {
			line := Line{Kind: LineTag, Text: tag.Body, Tag: tag.Raw, AuthorName: tag.Name, Color: DefaultColor}
			if id, ok := known[tag.Name]; ok {
				current = &id
				currentTag = tag.Raw
				color = Color(id.ID)
				line.Author = current
				line.Color = color
			}
			lines = append(lines, line)
			continue
		}
		if current != nil && strings.TrimSpace(text) != "" {
			lines = append(lines, Line{
				Kind:       LineAttributed,
				Text:       text,
				Tag:        currentTag,
				AuthorName: current.Username,
				Author:     current,
				Color:      color,
			})
			continue
		}
		lines = append(lines, Line{Kind: LinePlain, Text: text, Color: DefaultColor})
	}
	return lines
}

// Segments coalesces the output of Parse into runs of identical attribution.
// Blank unattributed lines only separate runs and are not emitted.
func Segments(content string, identities []Identity) []Segment {
	var (
		out  []Segment
		open *Segment
	)
	flush := func() {
		if open != nil {
			out = append(out, *open)
			open = nil
		}
	}
	for _, line := range Parse(content, identities) {
		switch line.Kind {
		case LineTag:
			flush()
			if body := strings.TrimSpace(line.Text); body != "" {
				open = &Segment{Author: line.Author, AuthorName: line.AuthorName, Color: line.Color, Tag: line.Tag, Text: body}
			}
		case LineAttributed:
			if open != nil && sameAttribution(*open, line) {
				open.Text += "\n" + line.Text
				continue
			}
			flush()
			open = &Segment{Author: line.Author, AuthorName: line.AuthorName, Color: line.Color, Tag: line.Tag, Text: line.Text}
		default:
			if strings.TrimSpace(line.Text) == "" {
				flush()
				continue
			}
			if open != nil && open.Author == nil && open.Tag == "" {
				open.Text += "\n" + line.Text
				continue
			}
			flush()
			open = &Segment{Color: DefaultColor, Text: line.Text}
		}
	}
	flush()
	return out
}

func sameAttribution(seg Segment, line Line) bool {
	if (seg.Author == nil) != (line.Author == nil) {
		return false
	}
	return seg.AuthorName == line.AuthorName && seg.Tag == line.Tag
}
