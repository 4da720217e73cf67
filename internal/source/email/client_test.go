package email

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingCloser struct{ closes atomic.Int32 }

func (c *countingCloser) Close() error {
	c.closes.Add(1)
	return nil
}

func TestCloseOnDone(t *testing.T) {
	t.Run("closes when the context ends first", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := &countingCloser{}
		release := closeOnDone(ctx, c)
		defer release()

		cancel()
		assert.Eventually(t, func() bool { return c.closes.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("released connection is left alone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := &countingCloser{}
		release := closeOnDone(ctx, c)

		release()
		cancel()
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, c.closes.Load())
	})
}
