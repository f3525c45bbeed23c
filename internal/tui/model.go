// Package tui is an interactive terminal front end for the analyzer.
package tui

import (
	"context"
	"errors"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/chart"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// resultMsg carries the terminal state of a run. ok is false when the run was
// superseded or canceled.
type resultMsg struct {
	state analyzer.State
	ok    bool
}

type Model struct {
	ctx     context.Context
	ctrl    *analyzer.Controller
	palette []string

	input   textinput.Model
	spinner spinner.Model
	state   analyzer.State
	width   int
}

// New builds the model. initial, if not blank, is analysed right away.
func New(ctx context.Context, ctrl *analyzer.Controller, palette []string, initial string) Model {
	if len(palette) == 0 {
		palette = chart.DefaultPalette
	}

	ti := textinput.New()
	ti.Placeholder = "Enter GitHub username"
	ti.Prompt = "> "
	ti.CharLimit = 100
	ti.SetValue(initial)
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		palette: palette,
		input:   ti,
		spinner: s,
		state:   ctrl.State(),
	}
}

func (m Model) Init() tea.Cmd {
	if m.input.Value() != "" {
		return tea.Batch(textinput.Blink, func() tea.Msg {
			return tea.KeyMsg{Type: tea.KeyEnter}
		})
	}
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.ctrl.Cancel()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.state.Phase == analyzer.PhaseLoading {
				m.ctrl.Cancel()
				m.state = m.ctrl.State()
			}
			return m, nil
		case tea.KeyEnter:
			return m.start()
		}

	case resultMsg:
		if msg.ok {
			m.state = msg.state
		} else {
			m.state = m.ctrl.State()
		}
		return m, nil

	case spinner.TickMsg:
		if m.state.Phase != analyzer.PhaseLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) start() (tea.Model, tea.Cmd) {
	ch, err := m.ctrl.Start(m.ctx, m.input.Value())
	if errors.Is(err, analyzer.ErrEmptyUsername) {
		return m, nil
	}
	if err != nil {
		m.state = analyzer.State{Phase: analyzer.PhaseFailed, Message: analyzer.UserMessage(err), Err: err}
		return m, nil
	}
	m.state = m.ctrl.State()
	return m, tea.Batch(m.spinner.Tick, waitForResult(ch))
}

func waitForResult(ch <-chan analyzer.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		return resultMsg{state: st, ok: ok}
	}
}

// Run starts the program on the terminal and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, ctrl *analyzer.Controller, palette []string, initial string) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	if ctrl == nil {
		return errors.New("controller is nil")
	}
	p := tea.NewProgram(New(ctx, ctrl, palette, initial), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
