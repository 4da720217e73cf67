package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	N model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.N.Title }

// Delegate implements list.ItemDelegate for one-line inbox rows.
type Delegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single inbox row.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderRow(it.N, index == m.Index(), m.Width()))
}

func (d Delegate) renderRow(n model.Notification, selected bool, width int) string {
	marker := " "
	if !n.IsRead {
		marker = theme.UnreadStyle.Render("●")
	}

	ks := theme.StyleFor(n.Kind)
	icon := lipgloss.NewStyle().Foreground(ks.Color).Render(ks.Icon)

	push := ""
	if n.Meta.WasPush {
		push = " " + theme.PushBadgeStyle.Render("push")
	}

	when := theme.DimmedStyle.Render(humanize.RelTime(n.CreatedAt, d.now(), "ago", "from now"))

	title := n.Title
	budget := width - lipgloss.Width(when) - lipgloss.Width(push) - 8
	if budget > 1 && lipgloss.Width(title) > budget {
		title = truncate(title, budget)
	}
	if n.IsRead {
		title = theme.DimmedStyle.Render(title)
	}

	line := fmt.Sprintf("%s %s %s%s  %s", marker, icon, title, push, when)

	if selected {
		return selectedStyle.Render(line)
	}
	return rowStyle.Render(line)
}

var rowStyle = lipgloss.NewStyle().PaddingLeft(1)

var selectedStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(theme.ColorBlue)

// truncate shortens s to n display cells, ending with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > n-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
