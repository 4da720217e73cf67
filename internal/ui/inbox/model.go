// Package inbox is the notification list view: a read filter over the
// engine's merged list with per-filter counts.
package inbox

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/readstate"
	"github.com/nhle/notification-sync/internal/theme"
)

// MarkReadRequestMsg asks the parent to acknowledge a notification with
// the backend. The list itself never flips IsRead.
type MarkReadRequestMsg struct {
	ID string
}

// Model is the inbox list view component.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	all    []model.Notification
	filter model.ReadFilter
	result readstate.Result
	width  int
	height int
}

// New creates a new inbox list.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{now: time.Now}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:   l,
		keys:   k,
		filter: model.FilterAll,
		width:  width,
		height: height,
	}
}

// Update handles messages for the inbox list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.IsRead {
				return m, nil
			}
			id := n.ID
			return m, func() tea.Msg { return MarkReadRequestMsg{ID: id} }

		case key.Matches(msg, m.keys.CycleFilter):
			return m, m.SetFilter(m.filter.Next())
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox list.
func (m Model) View() string {
	bar := m.renderFilterBar()
	if len(m.result.Items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, bar, m.renderEmptyState())
	}
	return lipgloss.JoinVertical(lipgloss.Left, bar, m.list.View())
}

func (m Model) renderFilterBar() string {
	tabs := []struct {
		f     model.ReadFilter
		count int
	}{
		{model.FilterAll, m.result.Counts.Total},
		{model.FilterUnread, m.result.Counts.Unread},
		{model.FilterRead, m.result.Counts.Read},
	}

	out := ""
	for _, t := range tabs {
		label := fmt.Sprintf(" %s (%d) ", t.f, t.count)
		if t.f == m.filter {
			out += theme.HeaderStyle.Padding(0).Render(label)
		} else {
			out += theme.DimmedStyle.Render(label)
		}
	}
	return out
}

// renderEmptyState shows guidance text when the filtered list is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-1, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.result.Counts.Total == 0:
		return style.Render("No notifications yet.")
	case m.filter == model.FilterUnread:
		return style.Render("You're all caught up.")
	default:
		return style.Render("Nothing matches this filter.")
	}
}

// SetNotifications replaces the underlying list, keeping the cursor on
// the same notification when it is still visible.
func (m *Model) SetNotifications(all []model.Notification) tea.Cmd {
	m.all = all
	return m.refresh()
}

// SetFilter changes the read filter.
func (m *Model) SetFilter(f model.ReadFilter) tea.Cmd {
	m.filter = f
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	prev, hadPrev := m.Selected()

	m.result = readstate.View(m.all, m.filter)
	items := make([]list.Item, len(m.result.Items))
	cursor := 0
	for i, n := range m.result.Items {
		items[i] = Item{N: n}
		if hadPrev && n.ID == prev.ID {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.N, true
}

// Filter returns the active read filter.
func (m Model) Filter() model.ReadFilter { return m.filter }

// Counts returns the counts over the unfiltered list.
func (m Model) Counts() readstate.Counts { return m.result.Counts }

// SetSize updates the list dimensions. One line goes to the filter bar.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 1))
}
