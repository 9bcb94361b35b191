package msgbar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"obdreader/can"
	"obdreader/obd"
)

const (
	barHeight = 7 // Total height of the component (including border)
)

// TraceMsg carries one frame seen by the session.
type TraceMsg struct {
	Dir   obd.Direction
	Frame can.Frame
}

// ErrorMsg is a failure worth showing in the trace.
type ErrorMsg struct {
	Err error
}

// Model holds the message bar's state
type Model struct {
	width int
	lines []string // newest first
}

// New creates a new message bar model
func New() Model {
	return Model{
		width: 80,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Lines returns the kept trace lines, newest first.
func (m Model) Lines() []string {
	return m.lines
}

func (m *Model) push(line string) {
	m.lines = append([]string{line}, m.lines...)
	if maxLines := barHeight - 2; len(m.lines) > maxLines {
		m.lines = m.lines[:maxLines]
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case TraceMsg:
		// e.g. "tx 7DF#0209020000000000"
		m.push(fmt.Sprintf("%s %s", msg.Dir, msg.Frame))

	case ErrorMsg:
		m.push("error: " + msg.Err.Error())
	}
	return m, nil
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(barHeight - 2).
		Padding(0, 1)

	contentWidth := m.width - 2 - 2 // -border, -padding
	if contentWidth < 0 {
		contentWidth = 0
	}

	var b strings.Builder
	numLines := barHeight - 2
	for i := 0; i < numLines; i++ {
		if i < len(m.lines) {
			// Oldest at the top so the trace reads in arrival order.
			line := m.lines[len(m.lines)-1-i]
			if len(line) > contentWidth {
				line = line[:contentWidth]
			}
			b.WriteString(line)
		}
		if i < numLines-1 {
			b.WriteRune('\n')
		}
	}

	return style.Render(b.String())
}

// Height is the fixed height of the bar.
func Height() int {
	return barHeight
}
