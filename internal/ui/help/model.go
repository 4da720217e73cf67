package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	mock   bool
	width  int
	height int
}

// New creates a new help view model. The generate and compose bindings
// are listed only when mock is set.
func New(k *keys.KeyMap, mock bool, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   k,
		help:   h,
		mock:   mock,
		width:  width,
		height: height,
	}
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	groups := m.keys.FullHelp()
	if !m.mock {
		groups = dropMockGroup(m.keys, groups)
	}
	helpText := m.help.FullHelpView(groups)

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 1)).
		Height(max(m.height-4, 1)).
		Render(content)
}

// ShortView renders the one-line hints used by the status bar.
func (m Model) ShortView() string {
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

func dropMockGroup(k *keys.KeyMap, groups [][]key.Binding) [][]key.Binding {
	out := groups[:0:0]
	for _, g := range groups {
		if len(g) > 0 && g[0].Help() == k.Generate.Help() {
			continue
		}
		out = append(out, g)
	}
	return out
}
