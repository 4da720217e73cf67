package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// Model is the notification detail pane. It follows the list selection
// and never takes focus.
type Model struct {
	current  *model.Notification
	viewport viewport.Model
	now      func() time.Time
	width    int
	height   int
}

// New creates a new detail pane.
func New(width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail pane.
func (m Model) View() string {
	if m.current == nil {
		return theme.DetailPanelStyle.
			Width(m.width - 2).
			Height(m.height - 2).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}
	return theme.DetailPanelStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(m.viewport.View())
}

// SetNotification shows n, or clears the pane when n is nil. The
// scroll position resets only when the selection changes.
func (m *Model) SetNotification(n *model.Notification) {
	changed := n == nil || m.current == nil || m.current.ID != n.ID
	m.current = n
	m.viewport.SetContent(m.renderContent())
	if changed {
		m.viewport.GotoTop()
	}
}

// SetSize updates the pane dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	// border and padding
	m.viewport.Width = max(width-6, 1)
	m.viewport.Height = max(height-4, 1)
	m.viewport.SetContent(m.renderContent())
}

func (m Model) renderContent() string {
	if m.current == nil {
		return ""
	}
	n := m.current
	now := m.now()

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	badges := []string{theme.StyleFor(n.Kind).Badge()}
	if n.Channel != "" {
		badges = append(badges, theme.ChannelLabelStyle(n.Channel).Render(string(n.Channel)))
	}
	if n.Meta.WasPush {
		badges = append(badges, theme.PushBadgeStyle.Render("via push"))
	}
	if !n.IsRead {
		badges = append(badges, theme.UnreadStyle.Render("unread"))
	}
	sections = append(sections, strings.Join(badges, " "), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-11s", label+":")), valStyle.Render(value))
	}

	sections = append(sections, row("Received", fmt.Sprintf(
		"%s (%s)",
		n.CreatedAt.Local().Format("2006-01-02 15:04"),
		humanize.RelTime(n.CreatedAt, now, "ago", "from now"),
	)))
	if n.Status != "" {
		sections = append(sections, row("Delivery", n.Status))
	}
	for _, f := range Fields(*n, now) {
		sections = append(sections, row(f.Label, f.Value))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.viewport.Width, 80), 1)))
	sections = append(sections, "", separator, "")

	body := n.Body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.viewport.Width, 1)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
