package picker

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"intellirefactor/logger"
)

var (
	colorPrimary = lipgloss.Color("39")
	colorDim     = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	activeStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// Model renders a Session in the terminal.
type Model struct {
	session  *Session
	accepted *Item
	err      error
}

func NewModel(s *Session) Model {
	return Model{session: s}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k", "ctrl+p", "shift+tab":
		m.report(m.session.Move(-1))
	case "down", "j", "ctrl+n", "tab":
		m.report(m.session.Move(1))
	case "enter":
		item, err := m.session.Accept()
		if err != nil {
			m.err = err
		} else {
			m.accepted = &item
		}
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.report(m.session.Cancel())
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) report(err error) {
	if err != nil {
		logger.Warn("picker preview: %v", err)
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.session.Placeholder))
	b.WriteByte('\n')
	for i, item := range m.session.Items() {
		line := fmt.Sprintf("  %s", item.Label)
		if i == m.session.Active() {
			line = activeStyle.Render("> " + item.Label)
		}
		b.WriteString(line)
		if item.Detail != "" {
			b.WriteString("  " + detailStyle.Render(item.Detail))
		}
		b.WriteByte('\n')
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter apply • esc cancel"))
	b.WriteByte('\n')
	return b.String()
}

// Result reports the accepted item, if any.
func (m Model) Result() (Item, bool) {
	if m.accepted == nil {
		return Item{}, false
	}
	return *m.accepted, true
}

// Run shows the session until the user accepts or cancels.
func Run(s *Session, in io.Reader, out io.Writer) (Item, bool, error) {
	p := tea.NewProgram(NewModel(s), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return Item{}, false, fmt.Errorf("picker: %w", err)
	}
	m := final.(Model)
	if m.err != nil {
		return Item{}, false, m.err
	}
	item, ok := m.Result()
	return item, ok, nil
}
