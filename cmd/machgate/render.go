package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"machgate/internal/entropy"
	"machgate/internal/mission"
	"machgate/internal/store"
	"machgate/internal/trace"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	labelColors = map[entropy.FlightLabel]lipgloss.Color{
		entropy.LabelMach1:     lipgloss.Color("42"),
		entropy.LabelLaminar:   lipgloss.Color("39"),
		entropy.LabelTurbulent: lipgloss.Color("214"),
		entropy.LabelPureChaos: lipgloss.Color("196"),
	}

	collisionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	cleanStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

func labelStyle(l entropy.FlightLabel) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(labelColors[l])
}

// bar renders v in [0,100] as a fixed-width gauge.
func bar(v int) string {
	const width = 20
	filled := v * width / 100
	return strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("░", width-filled))
}

func renderScore(r entropy.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s\n",
		titleStyle.Render(fmt.Sprintf("ENTROPY %3d", r.Score)),
		labelStyle(r.Label).Render(string(r.Label)),
		dimStyle.Render(fmt.Sprintf("%s · confidence %.2f", r.Status, r.Confidence)))
	rows := []struct {
		name string
		v    int
	}{
		{"ρ compression ", r.Vectors.Compression},
		{"σ ambiguity   ", r.Vectors.Ambiguity},
		{"μ specificity ", r.Vectors.Specificity},
		{"π structure   ", r.Vectors.Structure},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "\n%s %s %3d", row.name, bar(row.v), row.v)
	}
	return boxStyle.BorderForeground(labelColors[r.Label]).Render(b.String())
}

func renderTrace(r trace.Result) string {
	if !r.IsCollision() {
		return cleanStyle.Render("CLEAN") + dimStyle.Render("  no collision with the attached repository")
	}
	return collisionStyle.Render("COLLISION") + "\n\n" + renderMarkdown(mission.FormatCollisionReport(r))
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func renderMission(m mission.Mission, cards []mission.DeckCard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Mission"), m.ID)
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("status:   "), m.Status)
	fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("objective:"), m.Objective)
	if m.RepoURL != "" {
		fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("repo:     "), m.RepoURL)
	}
	if t := m.Metadata.Trace; t != nil {
		fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("trace:    "), t.Verdict)
	}
	if m.Metadata.Vague {
		fmt.Fprintf(&b, "%s %s\n", dimStyle.Render("vague:    "), "generator flagged the objective")
	}
	if e := m.Metadata.Entropy; e != nil {
		b.WriteString("\n" + renderScore(*e) + "\n")
	}
	for _, c := range cards {
		fmt.Fprintf(&b, "\n%s %s %s score=%d words=%d\n",
			titleStyle.Render("Deck card"), c.ID, labelStyle(c.Label).Render(string(c.Label)),
			c.Score, c.Metadata.WordCount)
	}
	if m.Plan != "" {
		b.WriteString("\n" + renderMarkdown(m.Plan))
	}
	return b.String()
}

func renderMissionRow(m mission.Mission) string {
	label := "-"
	if e := m.Metadata.Entropy; e != nil {
		label = labelStyle(e.Label).Render(fmt.Sprintf("%3d %s", e.Score, e.Label))
	}
	objective := m.Objective
	if r := []rune(objective); len(r) > 60 {
		objective = string(r[:57]) + "..."
	}
	return fmt.Sprintf("%s  %-10s  %-20s  %s", dimStyle.Render(shortID(m.ID)), m.Status, label, objective)
}

func renderRepoStats(stats []store.RepoStats) string {
	if len(stats) == 0 {
		return dimStyle.Render("no repositories ingested")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Repositories") + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "  %-40s code=%-4d doc=%-4d tribal=%d\n", s.Repo, s.Code, s.Doc, s.Tribal)
	}
	return b.String()
}

func renderOracleStats(stats []store.PurposeStats) string {
	if len(stats) == 0 {
		return dimStyle.Render("no oracle calls recorded")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Oracle calls") + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "  %-20s calls=%-5d failures=%-4d avg=%s\n", s.Purpose, s.Calls, s.Failures, s.AvgDuration)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
