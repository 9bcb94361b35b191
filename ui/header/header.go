package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const title = "OBD Reader"

// Model holds the header's state
type Model struct {
	width int
	link  string
}

// New creates a header showing which link is in use
func New(link string) Model {
	return Model{
		width: 80, // Default width, will be updated
		link:  link,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
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
		Bold(true).
		Background(lipgloss.Color("63")).
		Foreground(lipgloss.Color("255"))

	titleView := style.Padding(0, 1).Render(title)
	linkView := style.Bold(false).Padding(0, 1).Render(m.link)

	gap := m.width - lipgloss.Width(titleView) - lipgloss.Width(linkView)
	if gap < 0 {
		// Too narrow for both, keep the title.
		return style.Width(m.width).Render(title)
	}
	filler := style.Width(gap).Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, titleView, filler, linkView)
}
