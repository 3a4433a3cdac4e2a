// Package application is the bubbletea program that shows a spinner while
// a handler.FileImport runs and prints the rendered outcome.
package application

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbbaier/tableimport/internal/handler"
	"github.com/nbbaier/tableimport/internal/report"
)

var (
	// ErrInterrupted is returned by Run when the user quits before the job ends.
	ErrInterrupted = errors.New("interrupted")

	// ErrProgram wraps failures of the terminal program itself.
	ErrProgram = errors.New("terminal program failed")
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

// Model is the state of one import run.
type Model struct {
	job     *handler.FileImport
	spinner spinner.Model

	done   *handler.DoneMsg
	err    error
	quit   bool
	output string
}

// NewModel creates a model for job.
func NewModel(job *handler.FileImport) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return Model{job: job, spinner: s}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.job.Run())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quit = true
			return m, tea.Quit
		}
		return m, nil

	case handler.DoneMsg:
		m.done = &msg
		m.output = render(msg)
		return m, tea.Quit

	case handler.ErrMsg:
		m.err = msg.Err
		m.output = report.Error(msg.Err)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.output != "" {
		return m.output + "\n"
	}
	if m.quit {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.job.Label())
}

// Err returns the job error, ErrInterrupted, or nil.
func (m Model) Err() error {
	if m.err != nil {
		return m.err
	}
	if m.quit && m.done == nil {
		return ErrInterrupted
	}
	return nil
}

// Run executes job under a bubbletea program and returns its error.
// The rendered outcome is left on screen.
func Run(job *handler.FileImport, opts ...tea.ProgramOption) error {
	final, err := tea.NewProgram(NewModel(job), opts...).Run()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProgram, err)
	}
	return final.(Model).Err()
}

func render(msg handler.DoneMsg) string {
	if msg.Preview != nil {
		return report.Preview(msg.Preview)
	}
	return report.Import(msg.Result)
}
