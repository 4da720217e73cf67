package testutil

import (
	"testing"

	"github.com/nhle/notification-sync/internal/source/mock"
)

// NewTestMockBackend creates an in-memory mock backend with all
// migrations applied. It automatically closes the backend when the test
// completes.
func NewTestMockBackend(t *testing.T) *mock.Backend {
	t.Helper()

	b, err := mock.New(":memory:")
	if err != nil {
		t.Fatalf("creating test backend: %v", err)
	}

	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("closing test backend: %v", err)
		}
	})

	return b
}
