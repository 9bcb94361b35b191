package sidebar

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"obdreader/report"
)

var (
	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Model holds the sidebar's state
type Model struct {
	width   int
	height  int
	results []report.Report // newest first
}

// New creates a new sidebar model
func New() Model {
	return Model{
		width:  20,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// AddReport puts r at the top of the list
func (m *Model) AddReport(r report.Report) {
	m.results = append([]report.Report{r}, m.results...)
	m.trim()
}

// Results returns the listed reports, newest first.
func (m Model) Results() []report.Report {
	return m.results
}

// trim drops what no longer fits: borders plus the title take 3 lines.
func (m *Model) trim() {
	maxResults := m.height - 3
	if maxResults < 1 {
		maxResults = 1
	}
	if len(m.results) > maxResults {
		m.results = m.results[:maxResults]
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trim()
	}
	return m, nil
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(m.width - 2).
		Height(m.height - 2).
		Padding(0, 1)

	textWidth := m.width - 2 - 2 // border, padding
	if textWidth < 0 {
		textWidth = 0
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Underline(true).
		Width(textWidth).
		Render("Last Results")

	var b strings.Builder
	b.WriteString(header)

	contentHeight := (m.height - 2) - 1
	for i, r := range m.results {
		if i >= contentHeight {
			break
		}
		b.WriteRune('\n')

		line := r.At.Format("15:04:05") + " " + r.Summary()
		if len(line) > textWidth {
			line = line[:textWidth]
		}
		if r.Err != nil {
			line = errStyle.Render(line)
		} else {
			line = okStyle.Render(line)
		}
		b.WriteString(line)
	}

	return style.Render(b.String())
}
