// Package biolink splits a profile bio into plain text and hyperlink segments.
package biolink

import (
	"regexp"
	"strings"
)

// Placeholder is shown instead of an empty bio.
const Placeholder = "No bio available."

// A link ends at any whitespace, Unicode spaces such as U+00A0 included.
var urlPattern = regexp.MustCompile(`https?://[^\s\p{Z}]+`)

// Segment is either plain text (URL empty) or a link whose display text is
// the URL itself.
type Segment struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

func (s Segment) IsLink() bool {
	return s.URL != ""
}

// Parse returns the segments of bio in order. Empty text between adjacent
// links or at the edges is dropped. A blank bio yields nil; see HasBio.
func Parse(bio string) []Segment {
	if !HasBio(bio) {
		return nil
	}

	var out []Segment
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(bio, -1) {
		if loc[0] > last {
			out = append(out, Segment{Text: bio[last:loc[0]]})
		}
		link := bio[loc[0]:loc[1]]
		out = append(out, Segment{Text: link, URL: link})
		last = loc[1]
	}
	if last < len(bio) {
		out = append(out, Segment{Text: bio[last:]})
	}
	return out
}

func HasBio(bio string) bool {
	return strings.TrimSpace(bio) != ""
}

// Render returns Parse(bio), or a single placeholder text segment for a
// blank bio.
func Render(bio string) []Segment {
	if !HasBio(bio) {
		return []Segment{{Text: Placeholder}}
	}
	return Parse(bio)
}
