package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"machgate/internal/entropy"
)

// liveScoreModel rescores the objective on every edit.
type liveScoreModel struct {
	input  textarea.Model
	scorer *entropy.Scorer
	last   string
	result entropy.Result
	done   bool
}

func newLiveScoreModel(s *entropy.Scorer) liveScoreModel {
	ta := textarea.New()
	ta.Placeholder = "Describe the objective... (Esc to finish, Ctrl+C to abort)"
	ta.ShowLineNumbers = false
	ta.SetWidth(80)
	ta.SetHeight(5)
	ta.Focus()
	return liveScoreModel{input: ta, scorer: s, result: s.Calculate("")}
}

func (m liveScoreModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m liveScoreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC:
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 8 {
			m.input.SetWidth(msg.Width - 4)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.last {
		m.last = v
		m.result = m.scorer.Calculate(v)
	}
	return m, cmd
}

func (m liveScoreModel) View() string {
	return m.input.View() + "\n\n" + renderScore(m.result) + "\n"
}

// runLiveScore runs the interactive meter and returns the final objective
// and score. ok is false when the user aborted.
func runLiveScore(ctx context.Context, s *entropy.Scorer, in io.Reader, out io.Writer) (text string, r entropy.Result, ok bool, err error) {
	p := tea.NewProgram(newLiveScoreModel(s),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return "", entropy.Result{}, false, fmt.Errorf("interactive scoring failed: %w", err)
	}
	m := final.(liveScoreModel)
	return m.last, m.result, m.done, nil
}
