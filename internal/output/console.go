package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"ghanalyzer/internal/biolink"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	descriptionWidth = 60
)

// ConsoleSink prints reports to a terminal, either as a human readable
// summary or as indented JSON.
type ConsoleSink struct {
	writer io.Writer
	format string
	mu     sync.Mutex

	heading *color.Color
	accent  *color.Color
	faint   *color.Color
	failure *color.Color
}

func NewConsoleSink(w io.Writer, format string, noColor bool) (*ConsoleSink, error) {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("unsupported console format: %s", format)
	}

	s := &ConsoleSink{
		writer:  w,
		format:  format,
		heading: color.New(color.Bold, color.FgCyan),
		accent:  color.New(color.Bold),
		faint:   color.New(color.Faint),
		failure: color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{s.heading, s.accent, s.faint, s.failure} {
			c.DisableColor()
		}
	}
	return s, nil
}

func (s *ConsoleSink) Write(r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case FormatJSON:
		enc := json.NewEncoder(s.writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	default:
		if err := s.writeText(r); err != nil {
			return err
		}
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) writeText(r Report) error {
	var b strings.Builder
	if r.Failed() {
		s.failure.Fprintf(&b, "Error: %s\n", r.Message)
		_, err := io.WriteString(s.writer, b.String())
		return err
	}

	if p := r.Profile; p != nil {
		s.heading.Fprintf(&b, "%s", p.DisplayName())
		if p.Name != "" && p.Name != p.Login {
			fmt.Fprintf(&b, " (@%s)", p.Login)
		}
		b.WriteString("\n")
		if p.HTMLURL != "" {
			s.faint.Fprintf(&b, "%s\n", p.HTMLURL)
		}
		if biolink.HasBio(p.Bio) {
			fmt.Fprintf(&b, "%s\n", strings.TrimSpace(p.Bio))
		} else {
			s.faint.Fprintf(&b, "%s\n", biolink.Placeholder)
		}
		fmt.Fprintf(&b, "Followers: %d  Following: %d  Public Repos: %d\n", p.Followers, p.Following, p.PublicRepos)
	}

	b.WriteString("\n")
	s.accent.Fprintf(&b, "Languages Used\n")
	if r.Chart == nil || r.Chart.Empty() {
		s.faint.Fprintf(&b, "  No language data available.\n")
	} else {
		width := 0
		for _, sl := range r.Chart.Slices {
			width = max(width, runewidth.StringWidth(sl.Label))
		}
		for _, sl := range r.Chart.Slices {
			fmt.Fprintf(&b, "  %s  %6s  %d bytes\n", runewidth.FillRight(sl.Label, width), sl.Percent(), sl.Value)
		}
	}

	b.WriteString("\n")
	s.accent.Fprintf(&b, "Repositories (%d)\n", len(r.Repos))
	if len(r.Repos) == 0 {
		s.faint.Fprintf(&b, "  No public repositories.\n")
	}
	for _, repo := range r.Repos {
		fmt.Fprintf(&b, "  %s", repo.Name)
		if desc := oneLine(repo.Description); desc != "" {
			fmt.Fprintf(&b, " - %s", runewidth.Truncate(desc, descriptionWidth, "..."))
		}
		b.WriteString("\n")
		if repo.HTMLURL != "" {
			s.faint.Fprintf(&b, "    %s\n", repo.HTMLURL)
		}
	}

	_, err := io.WriteString(s.writer, b.String())
	return err
}

func (s *ConsoleSink) Close() error {
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}
