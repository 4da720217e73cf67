// Package sync keeps a subscriber's notification list current by polling
// a source.Backend and reports which notifications are new since the
// previous successful tick.
package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/normalize"
	"github.com/nhle/notification-sync/internal/ordering"
	"github.com/nhle/notification-sync/internal/readstate"
	"github.com/nhle/notification-sync/internal/source"
)

// ErrNotAcknowledged is returned by MarkRead when the backend answered
// but declined the mutation.
var ErrNotAcknowledged = errors.New("mark read not acknowledged")

// Defaults applied to zero Options fields.
const (
	DefaultInterval     = 3 * time.Second
	DefaultPageLimit    = 50
	DefaultHistoryLimit = 50
	DefaultFetchTimeout = 30 * time.Second
	DefaultReadGrace    = 30 * time.Second
)

// resultBuffer is the capacity of a subscription's result channel.
const resultBuffer = 16

// SyncState is the coarse state of a subscription's last tick.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// Options configures a subscription.
type Options struct {
	// Interval is the delay between the end of one tick and the start of
	// the next.
	Interval time.Duration

	// IncludeHistory also fetches the history feed on every tick.
	IncludeHistory bool

	// OnDiff receives the notifications that are new since the previous
	// successful tick, newest first. It runs on the polling goroutine and
	// is never called for the seed fetch or with an empty slice.
	OnDiff func([]model.Notification)

	PageLimit    int
	HistoryLimit int
	FetchTimeout time.Duration

	// ReadGrace protects acknowledged reads from stale fetches. Negative
	// disables it; zero means DefaultReadGrace.
	ReadGrace time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.PageLimit <= 0 {
		o.PageLimit = DefaultPageLimit
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	switch {
	case o.ReadGrace == 0:
		o.ReadGrace = DefaultReadGrace
	case o.ReadGrace < 0:
		o.ReadGrace = 0
	}
	return o
}

// Status is a snapshot of a subscription's progress.
type Status struct {
	State     SyncState
	Seeded    bool
	LastSync  time.Time
	LastError error
	Ticks     int
	Failures  int
}

// TickResult is published after every completed tick. On failure Items
// holds the last known good list and Err is set.
type TickResult struct {
	Items []model.Notification
	Diff  []model.Notification
	Err   error
	Seed  bool
}

// Engine starts subscriptions against one backend.
type Engine struct {
	backend source.Backend
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates an Engine.
func New(backend source.Backend, logger zerolog.Logger) *Engine {
	return &Engine{
		backend: backend,
		logger:  logger.With().Str("comp", "sync").Logger(),
		now:     time.Now,
	}
}

// Subscription is one running poll loop for one subscriber. All methods
// are safe for concurrent use.
type Subscription struct {
	engine       *Engine
	subscriberID string
	opts         Options
	logger       zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	resultCh  chan TickResult
	triggerCh chan struct{}

	mu      gosync.Mutex
	stopped bool
	seeded  bool
	seen    map[string]struct{}
	merged  []model.Notification
	ledger  *readstate.Ledger
	status  Status
}

// Start begins polling for subscriberID immediately with a seed fetch.
// The caller must eventually call Stop.
func (e *Engine) Start(subscriberID string, opts Options) *Subscription {
	s := e.newSubscription(subscriberID, opts)
	go s.run()
	return s
}

func (e *Engine) newSubscription(subscriberID string, opts Options) *Subscription {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscription{
		engine:       e,
		subscriberID: subscriberID,
		opts:         opts,
		logger:       e.logger.With().Str("subscriber", subscriberID).Logger(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		resultCh:     make(chan TickResult, resultBuffer),
		triggerCh:    make(chan struct{}, 1),
		seen:         make(map[string]struct{}),
		ledger:       readstate.NewLedger(opts.ReadGrace),
	}
}

// run executes ticks strictly one after another. The timer is re-armed
// only once the previous tick has finished.
func (s *Subscription) run() {
	defer close(s.done)

	timer := time.NewTimer(s.opts.Interval)
	timer.Stop()
	defer timer.Stop()

	for {
		s.tick()
		if s.ctx.Err() != nil {
			return
		}

		timer.Reset(s.opts.Interval)
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		case <-s.triggerCh:
			timer.Stop()
		}
	}
}

// tick performs one fetch-and-merge cycle. The first successful tick is
// the seed: it fills the seen set without reporting a diff.
func (s *Subscription) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	seed := !s.seeded
	s.status.State = SyncRunning
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.FetchTimeout)
	defer cancel()

	items, dropped, err := s.fetch(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.status.Ticks++

	if err != nil {
		s.status.State = SyncError
		s.status.LastError = err
		s.status.Failures++
		last := slices.Clone(s.merged)
		s.mu.Unlock()

		s.logger.Warn().Err(err).Bool("seed", seed).Msg("tick failed")
		s.sendResult(TickResult{Items: last, Err: err, Seed: seed})
		return
	}

	now := s.engine.now()
	items = s.ledger.Apply(items, now)

	var diff []model.Notification
	for _, n := range items {
		if _, ok := s.seen[n.ID]; ok {
			continue
		}
		s.seen[n.ID] = struct{}{}
		if !seed {
			diff = append(diff, n)
		}
	}

	s.merged = items
	s.seeded = true
	s.status.Seeded = true
	s.status.State = SyncIdle
	s.status.LastError = nil
	s.status.LastSync = now
	snapshot := slices.Clone(items)
	onDiff := s.opts.OnDiff
	s.mu.Unlock()

	s.logger.Debug().
		Bool("seed", seed).
		Int("items", len(items)).
		Int("new", len(diff)).
		Int("dropped", dropped).
		Msg("tick complete")

	if len(diff) > 0 && onDiff != nil && !s.isStopped() {
		onDiff(diff)
	}
	s.sendResult(TickResult{Items: snapshot, Diff: diff, Seed: seed})
}

// fetch loads the page and, when enabled, the history feed concurrently
// and returns the merged, normalized list. Either failure fails the tick.
func (s *Subscription) fetch(ctx context.Context) ([]model.Notification, int, error) {
	var (
		wg               gosync.WaitGroup
		page, history    []source.RawRecord
		pageErr, histErr error
	)

	backend := s.engine.backend
	wg.Go(func() {
		page, pageErr = backend.FetchPage(ctx, s.subscriberID, 1, s.opts.PageLimit)
	})
	if s.opts.IncludeHistory {
		wg.Go(func() {
			history, histErr = backend.FetchHistory(ctx, s.subscriberID, s.opts.HistoryLimit)
		})
	}
	wg.Wait()

	if pageErr != nil {
		return nil, 0, fmt.Errorf("fetching page: %w", pageErr)
	}
	if histErr != nil {
		return nil, 0, fmt.Errorf("fetching history: %w", histErr)
	}

	pageItems, droppedPage := normalize.NormalizeAll(page)
	histItems, droppedHist := normalize.NormalizeAll(history)
	return ordering.Merge(pageItems, histItems), droppedPage + droppedHist, nil
}

// MarkRead asks the backend to mark id read. Only an acknowledged
// request changes the local list.
func (s *Subscription) MarkRead(ctx context.Context, id string) error {
	ok, err := s.engine.backend.MarkRead(ctx, id, s.subscriberID)
	if err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("marking %s read: %w", id, ErrNotAcknowledged)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}

	s.ledger.Confirm(id, s.engine.now())
	for i, n := range s.merged {
		if n.ID == id && !n.IsRead {
			s.merged[i] = n.WithRead(true)
		}
	}
	s.logger.Debug().Str("id", id).Msg("marked read")
	return nil
}

// Notifications returns a copy of the merged list, newest first.
func (s *Subscription) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.merged)
}

// Status returns a snapshot of the subscription's progress.
func (s *Subscription) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubscriberID returns the subscriber this subscription polls for.
func (s *Subscription) SubscriberID() string {
	return s.subscriberID
}

// Results streams tick outcomes. Results are dropped when the buffer is
// full.
func (s *Subscription) Results() <-chan TickResult {
	return s.resultCh
}

// Refresh requests an immediate tick. Requests made while one is already
// pending are coalesced.
func (s *Subscription) Refresh() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Stop ends polling. It is idempotent and does not wait for an in-flight
// tick; that tick's result is discarded.
func (s *Subscription) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.logger.Debug().Msg("subscription stopped")
}

// Done is closed once the polling goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// sendResult publishes r without blocking the loop.
func (s *Subscription) sendResult(r TickResult) {
	select {
	case s.resultCh <- r:
	default:
	}
}
