package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/notification-sync/internal/keys"
)

func TestView_HidesMockBindingsOutsideMockMode(t *testing.T) {
	k := keys.DefaultKeyMap()

	live := New(k, false, 120, 30)
	assert.NotContains(t, live.View(), "generate")
	assert.Contains(t, live.View(), "mark read")

	mock := New(k, true, 120, 30)
	assert.Contains(t, mock.View(), "generate")
	assert.Contains(t, mock.View(), "compose")
}

func TestDropMockGroup(t *testing.T) {
	k := keys.DefaultKeyMap()
	groups := dropMockGroup(k, k.FullHelp())
	assert.Len(t, groups, len(k.FullHelp())-1)
}
