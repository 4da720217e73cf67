package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/popup"
	"github.com/nhle/notification-sync/internal/theme"
)

const maxToastWidth = 48

// RenderToast renders the pop-up queue's visible item, or "" when
// nothing is showing.
func RenderToast(st popup.State, width int) string {
	if !st.Showing() {
		return ""
	}
	item := st.Current

	w := min(maxToastWidth, width-2)
	if w < 10 {
		w = 10
	}

	head := theme.StyleFor(item.Kind).Badge()
	if item.WasPush {
		head += " " + theme.PushBadgeStyle.Render("via push")
	}

	lines := []string{head, lipgloss.NewStyle().Bold(true).Render(item.Title)}
	if body := strings.TrimSpace(item.Body); body != "" {
		lines = append(lines, theme.DimmedStyle.Render(body))
	}
	if st.Pending > 0 {
		lines = append(lines, theme.HelpStyle.Render(fmt.Sprintf("+%d more", st.Pending)))
	}

	return theme.ToastStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
