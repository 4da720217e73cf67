package popup

import (
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/model"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     gosync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, firing due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

func pushed(id string) model.Notification {
	return model.Notification{
		ID:      id,
		Title:   "title " + id,
		Kind:    model.KindPaymentIssue,
		Channel: model.ChannelInternal,
		Meta:    model.Meta{WasPush: true, OriginalChannel: "push"},
	}
}

func newTestQueue() (*Queue, *manualClock) {
	c := &manualClock{}
	q := New(Options{DisplayFor: 4 * time.Second, Settle: 100 * time.Millisecond, Clock: c})
	return q, c
}

func currentID(t *testing.T, q *Queue) string {
	t.Helper()
	item, ok := q.Current()
	if !ok {
		return ""
	}
	return item.ID
}

func TestAdmit(t *testing.T) {
	assert.True(t, Admit(model.Notification{Channel: model.ChannelInternal}))
	assert.True(t, Admit(model.Notification{Channel: model.ChannelEmail, Meta: model.Meta{WasPush: true}}))
	assert.False(t, Admit(model.Notification{Channel: model.ChannelEmail}))
	assert.False(t, Admit(model.Notification{Channel: model.ChannelSMS}))
}

func TestEnqueue_ShowsImmediatelyWhenIdle(t *testing.T) {
	q, _ := newTestQueue()

	require.True(t, q.Enqueue(pushed("a")))

	item, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", item.ID)
	assert.True(t, item.WasPush)
	assert.Equal(t, 0, q.Pending())
}

func TestEnqueue_RejectsNonAdmittedAndRepeats(t *testing.T) {
	q, c := newTestQueue()

	assert.False(t, q.Enqueue(model.Notification{ID: "mail", Channel: model.ChannelEmail}))
	assert.True(t, q.Enqueue(pushed("a")))
	assert.False(t, q.Enqueue(pushed("a")), "queued id")

	c.Advance(5 * time.Second)
	assert.Equal(t, "", currentID(t, q))
	assert.False(t, q.Enqueue(pushed("a")), "already shown id")
}

func TestQueue_FIFOWithSettle(t *testing.T) {
	q, c := newTestQueue()
	q.EnqueueAll([]model.Notification{pushed("a"), pushed("b"), pushed("c")})

	assert.Equal(t, "a", currentID(t, q))
	assert.Equal(t, 2, q.Pending())

	c.Advance(4 * time.Second)
	assert.Equal(t, "", currentID(t, q), "settling between items")
	assert.Equal(t, PhaseSettling, q.State().Phase)

	c.Advance(100 * time.Millisecond)
	assert.Equal(t, "b", currentID(t, q))

	q.Dismiss()
	c.Advance(100 * time.Millisecond)
	assert.Equal(t, "c", currentID(t, q))

	c.Advance(4*time.Second + 100*time.Millisecond)
	assert.Equal(t, "", currentID(t, q))
	assert.Equal(t, PhaseIdle, q.State().Phase)
}

func TestQueue_EnqueueDuringSettleWaits(t *testing.T) {
	q, c := newTestQueue()
	q.Enqueue(pushed("a"))
	q.Dismiss()

	q.Enqueue(pushed("b"))
	assert.Equal(t, "", currentID(t, q))
	assert.Equal(t, 1, q.Pending())

	c.Advance(100 * time.Millisecond)
	assert.Equal(t, "b", currentID(t, q))
}

func TestQueue_StaleTimerIsIgnored(t *testing.T) {
	q, c := newTestQueue()
	q.Enqueue(pushed("a"))
	q.Enqueue(pushed("b"))

	c.Advance(3 * time.Second)
	q.Dismiss()
	c.Advance(100 * time.Millisecond)
	require.Equal(t, "b", currentID(t, q))

	// a's display timer would have fired here; b must stay up.
	c.Advance(time.Second)
	assert.Equal(t, "b", currentID(t, q))

	c.Advance(3 * time.Second)
	assert.Equal(t, "", currentID(t, q))
}

func TestQueue_DismissID(t *testing.T) {
	q, _ := newTestQueue()
	q.Enqueue(pushed("a"))

	q.DismissID("other")
	assert.Equal(t, "a", currentID(t, q))

	q.DismissID("a")
	assert.Equal(t, "", currentID(t, q))
}

func TestQueue_Close(t *testing.T) {
	q, c := newTestQueue()
	q.Enqueue(pushed("a"))
	q.Enqueue(pushed("b"))

	q.Close()
	assert.Equal(t, "", currentID(t, q))
	assert.Equal(t, 0, q.Pending())
	assert.False(t, q.Enqueue(pushed("c")))

	c.Advance(10 * time.Second)
	assert.Equal(t, "", currentID(t, q))
}

func TestQueue_OnChange(t *testing.T) {
	var states []State
	c := &manualClock{}
	q := New(Options{Clock: c, OnChange: func(s State) { states = append(states, s) }})

	q.Enqueue(pushed("a"))
	c.Advance(DefaultDisplayFor)
	c.Advance(DefaultSettle)

	require.Len(t, states, 3)
	assert.True(t, states[0].Showing())
	assert.Equal(t, PhaseSettling, states[1].Phase)
	assert.Equal(t, PhaseIdle, states[2].Phase)
}
