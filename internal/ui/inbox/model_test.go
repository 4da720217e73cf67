package inbox

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
)

func notif(id string, minute int, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Kind:      model.KindOrderCreated,
		Title:     "Order " + id,
		CreatedAt: time.Date(2025, 1, 1, 10, minute, 0, 0, time.UTC),
		IsRead:    read,
	}
}

func newInbox(t *testing.T, list ...model.Notification) Model {
	t.Helper()
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetNotifications(list)
	return m
}

func ids(m Model) []string {
	var out []string
	for _, it := range m.list.Items() {
		out = append(out, it.(Item).N.ID)
	}
	return out
}

func TestSetNotifications_CountsAndOrder(t *testing.T) {
	m := newInbox(t, notif("c", 3, false), notif("b", 2, true), notif("a", 1, false))

	assert.Equal(t, []string{"c", "b", "a"}, ids(m))
	assert.Equal(t, 3, m.Counts().Total)
	assert.Equal(t, 1, m.Counts().Read)
	assert.Equal(t, 2, m.Counts().Unread)
}

func TestCycleFilter(t *testing.T) {
	m := newInbox(t, notif("c", 3, false), notif("b", 2, true), notif("a", 1, false))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, model.FilterUnread, m.Filter())
	assert.Equal(t, []string{"c", "a"}, ids(m))
	assert.Equal(t, 3, m.Counts().Total, "counts ignore the filter")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, model.FilterRead, m.Filter())
	assert.Equal(t, []string{"b"}, ids(m))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, model.FilterAll, m.Filter())
}

func TestEnter_RequestsMarkReadForUnreadOnly(t *testing.T) {
	m := newInbox(t, notif("c", 3, false), notif("b", 2, true))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadRequestMsg{ID: "c"}, cmd())

	m.list.Select(1)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestEnter_DoesNotFlipLocally(t *testing.T) {
	m := newInbox(t, notif("c", 3, false))

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	n, ok := m.Selected()
	require.True(t, ok)
	assert.False(t, n.IsRead)
}

func TestSetNotifications_KeepsCursorOnSameItem(t *testing.T) {
	m := newInbox(t, notif("c", 3, false), notif("b", 2, false), notif("a", 1, false))
	m.list.Select(1)

	m.SetNotifications([]model.Notification{
		notif("d", 4, false), notif("c", 3, false), notif("b", 2, false), notif("a", 1, false),
	})

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
}

func TestView_EmptyStates(t *testing.T) {
	m := newInbox(t)
	assert.Contains(t, m.View(), "No notifications yet.")

	m = newInbox(t, notif("a", 1, true))
	m.SetFilter(model.FilterUnread)
	assert.Contains(t, m.View(), "all caught up")
}

func TestTruncate(t *testing.T) {
	got := truncate("Payment disputed for order", 10)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), 10)
}
