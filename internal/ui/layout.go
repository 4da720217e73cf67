package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/theme"
)

// minDetailWidth is the narrowest terminal that still gets a detail pane.
const minDetailWidth = 90

// Layout manages the inbox screen dimensions: header, list and detail
// panes, an optional toast strip and the status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height left for the panes once the header,
// status bar and reserved lines are taken.
func (l Layout) ContentHeight(reserved int) int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - reserved
	if h < 1 {
		h = 1
	}
	return h
}

// PaneWidths splits the width between the list and the detail pane.
// Narrow terminals get the list only, reported as a zero detail width.
func (l Layout) PaneWidths() (list, detail int) {
	if l.Width < minDetailWidth {
		return l.Width, 0
	}
	list = l.Width * 3 / 5
	return list, l.Width - list
}

// RenderHeader renders the top header bar with a title and sync status
// on the right.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		l.filler(theme.HeaderStyle, lipgloss.Width(titleRendered)+lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.filler(theme.StatusBarStyle, lipgloss.Width(rendered)),
	)
}

// RenderPanes joins the list and detail panes side by side. An empty
// detail renders the list alone.
func (l Layout) RenderPanes(list, detail string) string {
	if detail == "" {
		return list
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, an optional toast strip, the content area, and the status
// bar.
func (l Layout) RenderWithFrame(
	header string,
	toast string,
	content string,
	statusBar string,
) string {
	parts := []string{header}
	if toast != "" {
		parts = append(parts, lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, toast))
	}
	parts = append(parts, content, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// filler pads a bar out to the full width in the bar's background.
func (l Layout) filler(bar lipgloss.Style, used int) string {
	gap := l.Width - used
	if gap < 0 {
		gap = 0
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(bar.GetBackground()).
		Render("")
}
