package readstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/model"
)

func sample() []model.Notification {
	return []model.Notification{
		{ID: "1", IsRead: false},
		{ID: "2", IsRead: true},
		{ID: "3", IsRead: false},
	}
}

func TestView(t *testing.T) {
	tests := []struct {
		filter model.ReadFilter
		want   []string
	}{
		{model.FilterAll, []string{"1", "2", "3"}},
		{model.FilterUnread, []string{"1", "3"}},
		{model.FilterRead, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			res := View(sample(), tt.filter)

			var got []string
			for _, n := range res.Items {
				got = append(got, n.ID)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Counts{Total: 3, Read: 1, Unread: 2}, res.Counts)
		})
	}
}

func TestView_Empty(t *testing.T) {
	res := View(nil, model.FilterUnread)
	assert.Empty(t, res.Items)
	assert.Equal(t, Counts{}, res.Counts)
}

func TestLedger_GraceWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(30 * time.Second)
	l.Confirm("1", now)

	t.Run("stale unread is overridden inside window", func(t *testing.T) {
		in := sample()
		out := l.Apply(in, now.Add(10*time.Second))
		assert.True(t, out[0].IsRead)
		assert.False(t, in[0].IsRead, "input must not be mutated")
		assert.Equal(t, 1, l.Len())
	})

	t.Run("backend wins after window", func(t *testing.T) {
		out := l.Apply(sample(), now.Add(31*time.Second))
		assert.False(t, out[0].IsRead)
		assert.Equal(t, 0, l.Len())
	})
}

func TestLedger_ForgetsOnceBackendAgrees(t *testing.T) {
	now := time.Now()
	l := NewLedger(time.Minute)
	l.Confirm("2", now)

	out := l.Apply(sample(), now)
	require.Len(t, out, 3)
	assert.True(t, out[1].IsRead)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_ZeroGrace(t *testing.T) {
	now := time.Now()
	l := NewLedger(0)
	l.Confirm("1", now)

	out := l.Apply(sample(), now)
	assert.False(t, out[0].IsRead)
	assert.Equal(t, 0, l.Len())
}
