package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/source"
)

// fakeBackend serves canned service-shape records.
type fakeBackend struct {
	mu       gosync.Mutex
	page     []source.RawRecord
	history  []source.RawRecord
	fetchErr error
	histErr  error
	ackRead  bool
	markErr  error
	marked   []string
	fetches  int
}

func (f *fakeBackend) FetchPage(ctx context.Context, _ string, _, _ int) ([]source.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]source.RawRecord(nil), f.page...), nil
}

func (f *fakeBackend) FetchHistory(ctx context.Context, _ string, _ int) ([]source.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	return append([]source.RawRecord(nil), f.history...), nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, id, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	f.marked = append(f.marked, id)
	return f.ackRead, nil
}

func (f *fakeBackend) setPage(recs ...source.RawRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = recs
}

func (f *fakeBackend) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// blockingBackend parks FetchPage once armed until release is closed,
// ignoring ctx.
type blockingBackend struct {
	*fakeBackend
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newBlockingBackend() *blockingBackend {
	return &blockingBackend{
		fakeBackend: &fakeBackend{},
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (b *blockingBackend) FetchPage(ctx context.Context, sub string, page, limit int) ([]source.RawRecord, error) {
	if b.armed.Load() {
		b.entered <- struct{}{}
		<-b.release
	}
	return b.fakeBackend.FetchPage(ctx, sub, page, limit)
}

func record(id string, minute int, read bool) source.RawRecord {
	estado := "pendiente"
	if read {
		estado = "leido"
	}
	return source.RawRecord(fmt.Sprintf(
		`{"id_notificacion":%q,"fecha_hora":"2024-01-01T10:%02d:00Z","channel_ids":[3],"estado":%q,"title":"n %s","type":"order_created"}`,
		id, minute, estado, id,
	))
}

// diffRecorder collects OnDiff calls.
type diffRecorder struct {
	mu    gosync.Mutex
	calls [][]string
}

func (d *diffRecorder) onDiff(list []model.Notification) {
	ids := make([]string, len(list))
	for i, n := range list {
		ids[i] = n.ID
	}
	d.mu.Lock()
	d.calls = append(d.calls, ids)
	d.mu.Unlock()
}

func (d *diffRecorder) snapshot() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.calls...)
}

func idsOf(list []model.Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func newTestSubscription(b source.Backend, opts Options) (*Subscription, *diffRecorder) {
	rec := &diffRecorder{}
	opts.OnDiff = rec.onDiff
	e := New(b, zerolog.Nop())
	return e.newSubscription("usuario123", opts), rec
}

func TestTick_SeedThenDiff(t *testing.T) {
	b := &fakeBackend{}
	b.setPage(record("n1", 0, false))
	s, rec := newTestSubscription(b, Options{})

	s.tick()
	assert.Empty(t, rec.snapshot(), "seed must not report a diff")
	assert.Equal(t, []string{"n1"}, idsOf(s.Notifications()))
	assert.True(t, s.Status().Seeded)

	b.setPage(record("n1", 0, false), record("n2", 1, false))
	s.tick()
	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, []string{"n2"}, rec.snapshot()[0])
	assert.Equal(t, []string{"n2", "n1"}, idsOf(s.Notifications()))

	s.tick()
	assert.Len(t, rec.snapshot(), 1, "unchanged feed reports nothing")
}

func TestTick_SeedDoesNotReportExistingItems(t *testing.T) {
	b := &fakeBackend{}
	b.setPage(record("a", 1, false), record("b", 2, true), record("c", 3, false))
	s, rec := newTestSubscription(b, Options{})

	s.tick()
	s.tick()

	assert.Empty(t, rec.snapshot())
	assert.Len(t, s.Notifications(), 3)
}

func TestTick_DiffIsNewestFirst(t *testing.T) {
	b := &fakeBackend{}
	s, rec := newTestSubscription(b, Options{})
	s.tick()
	require.True(t, s.Status().Seeded)

	b.setPage(record("a", 1, false), record("c", 3, false), record("b", 2, false))
	s.tick()

	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, []string{"c", "b", "a"}, rec.snapshot()[0])
	assert.Equal(t, []string{"c", "b", "a"}, idsOf(s.Notifications()))
}

func TestTick_FailureKeepsLastKnownGood(t *testing.T) {
	b := &fakeBackend{}
	b.setPage(record("n1", 0, false))
	s, rec := newTestSubscription(b, Options{})
	s.tick()

	b.setFetchErr(errors.New("connection refused"))
	s.tick()

	st := s.Status()
	assert.Equal(t, SyncError, st.State)
	assert.Equal(t, 1, st.Failures)
	assert.Error(t, st.LastError)
	assert.Equal(t, []string{"n1"}, idsOf(s.Notifications()))
	assert.Empty(t, rec.snapshot())

	b.setFetchErr(nil)
	b.setPage(record("n1", 0, false), record("n2", 1, false))
	s.tick()

	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, []string{"n2"}, rec.snapshot()[0])
	assert.Equal(t, SyncIdle, s.Status().State)
	assert.NoError(t, s.Status().LastError)
}

func TestTick_FailedSeedIsRetriedAsSeed(t *testing.T) {
	b := &fakeBackend{fetchErr: errors.New("boom")}
	s, rec := newTestSubscription(b, Options{})

	s.tick()
	assert.False(t, s.Status().Seeded)

	b.setFetchErr(nil)
	b.setPage(record("n1", 0, false))
	s.tick()

	assert.True(t, s.Status().Seeded)
	assert.Empty(t, rec.snapshot())
}

func TestTick_HistoryFailureFailsTick(t *testing.T) {
	b := &fakeBackend{histErr: errors.New("history down")}
	b.setPage(record("n1", 0, false))
	s, _ := newTestSubscription(b, Options{IncludeHistory: true})

	s.tick()

	assert.False(t, s.Status().Seeded)
	assert.Empty(t, s.Notifications())
}

func TestTick_MergesHistoryAndDropsMalformed(t *testing.T) {
	b := &fakeBackend{
		history: []source.RawRecord{
			record("n1", 0, false),
			source.RawRecord(`{"id":"h1","eventType":"payment_issue","subject":"Card declined","channel":"email","sentAt":"2024-01-01T10:05:00Z"}`),
		},
	}
	b.setPage(record("n1", 0, true), source.RawRecord(`{"garbage":true}`))
	s, _ := newTestSubscription(b, Options{IncludeHistory: true})

	s.tick()

	got := s.Notifications()
	assert.Equal(t, []string{"h1", "n1"}, idsOf(got))
	assert.True(t, got[1].IsRead, "page copy wins over history copy")
}

func TestMarkRead(t *testing.T) {
	t.Run("acknowledged", func(t *testing.T) {
		b := &fakeBackend{ackRead: true}
		b.setPage(record("n1", 0, false))
		s, _ := newTestSubscription(b, Options{})
		s.tick()

		require.NoError(t, s.MarkRead(context.Background(), "n1"))
		assert.True(t, s.Notifications()[0].IsRead)
		assert.Equal(t, []string{"n1"}, b.marked)

		// A stale fetch inside the grace window does not undo the read.
		s.tick()
		assert.True(t, s.Notifications()[0].IsRead)
	})

	t.Run("declined", func(t *testing.T) {
		b := &fakeBackend{ackRead: false}
		b.setPage(record("n1", 0, false))
		s, _ := newTestSubscription(b, Options{})
		s.tick()

		err := s.MarkRead(context.Background(), "n1")
		assert.ErrorIs(t, err, ErrNotAcknowledged)
		assert.False(t, s.Notifications()[0].IsRead)
	})

	t.Run("transport error", func(t *testing.T) {
		transport := errors.New("timeout")
		b := &fakeBackend{markErr: transport}
		b.setPage(record("n1", 0, false))
		s, _ := newTestSubscription(b, Options{})
		s.tick()

		err := s.MarkRead(context.Background(), "n1")
		assert.ErrorIs(t, err, transport)
		assert.False(t, s.Notifications()[0].IsRead)
	})

	t.Run("backend wins once grace expires", func(t *testing.T) {
		b := &fakeBackend{ackRead: true}
		b.setPage(record("n1", 0, false))
		s, _ := newTestSubscription(b, Options{ReadGrace: time.Second})
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		s.engine.now = func() time.Time { return now }
		s.tick()

		require.NoError(t, s.MarkRead(context.Background(), "n1"))
		now = now.Add(2 * time.Second)
		s.tick()
		assert.False(t, s.Notifications()[0].IsRead)
	})
}

func TestStop(t *testing.T) {
	b := &fakeBackend{}
	b.setPage(record("n1", 0, false))
	s, rec := newTestSubscription(b, Options{})
	s.tick()

	s.Stop()
	s.Stop()

	b.setPage(record("n1", 0, false), record("n2", 1, false))
	s.tick()

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, []string{"n1"}, idsOf(s.Notifications()))
	assert.Equal(t, 1, b.fetches)
}

func TestStop_DiscardsInFlightFetch(t *testing.T) {
	b := newBlockingBackend()
	b.setPage(record("n1", 0, false))
	s, rec := newTestSubscription(b, Options{})
	s.tick()

	b.setPage(record("n1", 0, false), record("n2", 1, false))
	b.armed.Store(true)

	finished := make(chan struct{})
	go func() {
		s.tick()
		close(finished)
	}()

	select {
	case <-b.entered:
	case <-time.After(time.Second):
		t.Fatal("fetch never started")
	}
	s.Stop()
	close(b.release)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("tick did not return")
	}

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, []string{"n1"}, idsOf(s.Notifications()))
	assert.Equal(t, 1, s.Status().Ticks)
}

func TestStart_PollsUntilStopped(t *testing.T) {
	b := &fakeBackend{}
	b.setPage(record("n1", 0, false))

	rec := &diffRecorder{}
	e := New(b, zerolog.Nop())
	s := e.Start("usuario123", Options{Interval: 10 * time.Millisecond, OnDiff: rec.onDiff})

	assert.Eventually(t, func() bool { return s.Status().Seeded }, time.Second, 5*time.Millisecond)

	b.setPage(record("n1", 0, false), record("n2", 1, false))
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"n2"}, rec.snapshot()[0])

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("poll loop did not exit after Stop")
	}
}

func TestRefresh_TriggersImmediateTick(t *testing.T) {
	b := &fakeBackend{}
	b.setPage(record("n1", 0, false))

	e := New(b, zerolog.Nop())
	s := e.Start("usuario123", Options{Interval: time.Hour})
	defer s.Stop()

	select {
	case r := <-s.Results():
		assert.True(t, r.Seed)
	case <-time.After(time.Second):
		t.Fatal("no seed result")
	}

	b.setPage(record("n1", 0, false), record("n2", 1, false))
	s.Refresh()

	select {
	case r := <-s.Results():
		assert.False(t, r.Seed)
		assert.Equal(t, []string{"n2"}, idsOf(r.Diff))
		assert.Equal(t, []string{"n2", "n1"}, idsOf(r.Items))
	case <-time.After(time.Second):
		t.Fatal("refresh did not tick")
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultInterval, o.Interval)
	assert.Equal(t, DefaultPageLimit, o.PageLimit)
	assert.Equal(t, DefaultHistoryLimit, o.HistoryLimit)
	assert.Equal(t, DefaultFetchTimeout, o.FetchTimeout)
	assert.Equal(t, DefaultReadGrace, o.ReadGrace)

	assert.Equal(t, time.Duration(0), Options{ReadGrace: -1}.withDefaults().ReadGrace)
}
