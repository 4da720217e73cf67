// Package popup shows at most one transient pop-up at a time, each
// notification at most once, in FIFO order.
package popup

import (
	gosync "sync"
	"time"

	"github.com/nhle/notification-sync/internal/model"
)

// Defaults applied to zero Options fields.
const (
	DefaultDisplayFor = 4 * time.Second
	DefaultSettle     = 100 * time.Millisecond
)

// Timer is the subset of *time.Timer the queue needs.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Item is one queued pop-up.
type Item struct {
	ID      string
	Title   string
	Body    string
	WasPush bool
	Kind    model.Kind
}

func itemFrom(n model.Notification) Item {
	return Item{
		ID:      n.ID,
		Title:   n.Title,
		Body:    n.Body,
		WasPush: n.Meta.WasPush,
		Kind:    n.Kind,
	}
}

// Phase is the queue's display state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseShowing
	PhaseSettling
)

// State is a snapshot passed to Options.OnChange.
type State struct {
	Phase   Phase
	Current Item
	Pending int
}

// Showing reports whether an item is on screen.
func (s State) Showing() bool { return s.Phase == PhaseShowing }

// Options configures a Queue.
type Options struct {
	DisplayFor time.Duration
	Settle     time.Duration

	// OnChange is called after every visible transition. It may run on a
	// timer goroutine and must not block.
	OnChange func(State)

	Clock Clock
}

// Queue is safe for concurrent use.
type Queue struct {
	opts Options

	mu      gosync.Mutex
	seen    map[string]struct{}
	pending []Item
	current Item
	phase   Phase
	gen     uint64
	timer   Timer
	closed  bool
}

// New creates an idle Queue.
func New(opts Options) *Queue {
	if opts.DisplayFor <= 0 {
		opts.DisplayFor = DefaultDisplayFor
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Queue{opts: opts, seen: make(map[string]struct{})}
}

// Admit reports whether n qualifies for a pop-up: it arrived over push or
// belongs to the internal channel.
func Admit(n model.Notification) bool {
	return n.Meta.WasPush || n.Channel == model.ChannelInternal
}

// Enqueue offers n to the queue. It returns false when n is not admitted,
// was offered before, or the queue is closed.
func (q *Queue) Enqueue(n model.Notification) bool {
	if !Admit(n) {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.seen[n.ID]; ok {
		q.mu.Unlock()
		return false
	}
	q.seen[n.ID] = struct{}{}

	item := itemFrom(n)
	if q.phase == PhaseIdle && len(q.pending) == 0 {
		q.showLocked(item)
	} else {
		q.pending = append(q.pending, item)
	}
	st := q.stateLocked()
	q.mu.Unlock()

	q.notify(st)
	return true
}

// EnqueueAll offers each notification in order and returns how many were
// accepted.
func (q *Queue) EnqueueAll(list []model.Notification) int {
	accepted := 0
	for _, n := range list {
		if q.Enqueue(n) {
			accepted++
		}
	}
	return accepted
}

// Dismiss closes the current item, if any.
func (q *Queue) Dismiss() {
	q.mu.Lock()
	if q.closed || q.phase != PhaseShowing {
		q.mu.Unlock()
		return
	}
	q.dismissLocked()
	st := q.stateLocked()
	q.mu.Unlock()

	q.notify(st)
}

// DismissID closes the current item only if its ID is id.
func (q *Queue) DismissID(id string) {
	q.mu.Lock()
	if q.closed || q.phase != PhaseShowing || q.current.ID != id {
		q.mu.Unlock()
		return
	}
	q.dismissLocked()
	st := q.stateLocked()
	q.mu.Unlock()

	q.notify(st)
}

// Current returns the item on screen.
func (q *Queue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.phase == PhaseShowing
}

// Pending returns the number of items waiting behind the current one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// State returns a snapshot of the queue.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

// Close stops all timers and drops pending items. Later calls to Enqueue
// are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.stopTimerLocked()
	q.gen++
	q.pending = nil
	q.current = Item{}
	q.phase = PhaseIdle
}

func (q *Queue) showLocked(item Item) {
	q.stopTimerLocked()
	q.current = item
	q.phase = PhaseShowing
	q.gen++
	gen := q.gen
	q.timer = q.opts.Clock.AfterFunc(q.opts.DisplayFor, func() { q.expire(gen) })
}

func (q *Queue) dismissLocked() {
	q.stopTimerLocked()
	q.current = Item{}
	q.phase = PhaseSettling
	q.gen++
	gen := q.gen
	q.timer = q.opts.Clock.AfterFunc(q.opts.Settle, func() { q.advance(gen) })
}

func (q *Queue) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

// expire auto-dismisses the item shown under generation gen.
func (q *Queue) expire(gen uint64) {
	q.mu.Lock()
	if q.closed || gen != q.gen || q.phase != PhaseShowing {
		q.mu.Unlock()
		return
	}
	q.dismissLocked()
	st := q.stateLocked()
	q.mu.Unlock()

	q.notify(st)
}

// advance ends the settle pause and shows the next pending item.
func (q *Queue) advance(gen uint64) {
	q.mu.Lock()
	if q.closed || gen != q.gen || q.phase != PhaseSettling {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	q.phase = PhaseIdle
	if len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.showLocked(next)
	}
	st := q.stateLocked()
	q.mu.Unlock()

	q.notify(st)
}

func (q *Queue) stateLocked() State {
	return State{Phase: q.phase, Current: q.current, Pending: len(q.pending)}
}

func (q *Queue) notify(st State) {
	if q.opts.OnChange != nil {
		q.opts.OnChange(st)
	}
}
