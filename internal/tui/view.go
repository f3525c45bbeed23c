package tui

import (
	"fmt"
	"math"
	"strings"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/biolink"
	"ghanalyzer/internal/chart"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	defaultWidth = 80
	maxBarWidth  = 30
	maxRepos     = 20
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("GitHub User Analyzer"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	switch m.state.Phase {
	case analyzer.PhaseLoading:
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s Analyzing %s...\n", m.spinner.View(), m.state.Username)
	case analyzer.PhaseFailed:
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.state.Message))
		b.WriteString("\n")
	case analyzer.PhaseSuccess:
		b.WriteString(m.renderResult())
	}

	b.WriteString(footerStyle.Render("enter: analyze │ esc: cancel │ ctrl+c: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) lineWidth() int {
	if m.width > 0 {
		return m.width
	}
	return defaultWidth
}

func (m Model) renderResult() string {
	var b strings.Builder
	st := m.state

	if p := st.Profile; p != nil {
		b.WriteString("\n")
		b.WriteString(nameStyle.Render(p.DisplayName()))
		if p.Name != "" && p.Name != p.Login {
			fmt.Fprintf(&b, " @%s", p.Login)
		}
		b.WriteString("\n")
		if p.HTMLURL != "" {
			b.WriteString(linkStyle.Render(p.HTMLURL))
			b.WriteString("\n")
		}
		b.WriteString(renderBio(p.Bio))
		b.WriteString("\n")
		badges := []string{
			badgeStyle.Render(fmt.Sprintf("Followers: %d", p.Followers)),
			badgeStyle.Render(fmt.Sprintf("Following: %d", p.Following)),
			badgeStyle.Render(fmt.Sprintf("Public Repos: %d", p.PublicRepos)),
		}
		b.WriteString(strings.Join(badges, " "))
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render("Languages Used"))
	b.WriteString("\n")
	b.WriteString(renderLanguages(chart.NewPie(st.Tally, m.palette)))

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Repositories (%d)", len(st.Repos))))
	b.WriteString("\n")
	if len(st.Repos) == 0 {
		b.WriteString(emptyStyle.Render("  No public repositories."))
		b.WriteString("\n")
	}
	width := m.lineWidth()
	for i, r := range st.Repos {
		if i == maxRepos {
			b.WriteString(emptyStyle.Render(fmt.Sprintf("  … and %d more", len(st.Repos)-maxRepos)))
			b.WriteString("\n")
			break
		}
		line := "  " + repoStyle.Render(r.Name)
		if desc := strings.Join(strings.Fields(r.Description), " "); desc != "" {
			room := width - runewidth.StringWidth(r.Name) - 5
			if room > 3 {
				line += " - " + runewidth.Truncate(desc, room, "...")
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderBio(bio string) string {
	if !biolink.HasBio(bio) {
		return emptyStyle.Render(biolink.Placeholder)
	}
	var b strings.Builder
	for _, seg := range biolink.Parse(bio) {
		if seg.IsLink() {
			b.WriteString(linkStyle.Render(seg.Text))
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// renderLanguages draws one bar per language, scaled to the largest one.
func renderLanguages(pie chart.Pie) string {
	if pie.Empty() {
		return emptyStyle.Render("  No language data available.") + "\n"
	}

	labelWidth := 0
	var largest float64
	for _, s := range pie.Slices {
		labelWidth = max(labelWidth, runewidth.StringWidth(s.Label))
		largest = max(largest, s.Fraction)
	}

	var b strings.Builder
	for _, s := range pie.Slices {
		n := 0
		if largest > 0 {
			n = int(math.Round(s.Fraction / largest * maxBarWidth))
		}
		if n == 0 && s.Value > 0 {
			n = 1
		}
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(strings.Repeat("█", n))
		fmt.Fprintf(&b, "  %s %6s %s\n", runewidth.FillRight(s.Label, labelWidth), s.Percent(), bar)
	}
	return b.String()
}
