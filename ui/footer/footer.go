package footer

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const keys = "r: VIN  c: codes  x: clear codes  q: quit"

// Model holds the footer's state
type Model struct {
	width  int
	status string
}

// New creates a new footer model
func New() Model {
	return Model{width: 80, status: "idle"}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// SetStatus changes the text shown on the right.
func (m *Model) SetStatus(status string) {
	m.status = status
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m Model) View() string {
	style := lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("250"))

	left := style.Padding(0, 1).Render(keys)
	right := style.Padding(0, 1).Render(m.status)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		return style.Width(m.width).Render(keys)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, style.Width(gap).Render(""), right)
}
