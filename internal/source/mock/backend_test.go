package mock

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/normalize"
	"github.com/nhle/notification-sync/internal/source"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFetchPage_NewestFirstAndPaged(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		_, err := b.Insert(ctx, Seed{
			ID:           id,
			SubscriberID: "usuario123",
			EventType:    "order_created",
			Title:        "t " + id,
			CreatedAt:    t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := b.Insert(ctx, Seed{ID: "other", SubscriberID: "someone-else", CreatedAt: t0})
	require.NoError(t, err)

	recs, err := b.FetchPage(ctx, "usuario123", 1, 2)
	require.NoError(t, err)
	list, dropped := normalize.NormalizeAll(recs)
	assert.Zero(t, dropped)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, model.KindOrderCreated, list[0].Kind)

	recs, err = b.FetchPage(ctx, "usuario123", 2, 2)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestFetchHistory_UsesHistoryShape(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_, err := b.Insert(ctx, Seed{
		ID:           "p1",
		SubscriberID: "u",
		EventType:    "payment_issue",
		Title:        "Payment failed",
		ChannelIDs:   []int{source.ChannelCodeEmail, source.ChannelCodePush},
		Metadata:     map[string]any{"paymentId": "PAY-1"},
		CreatedAt:    t0,
	})
	require.NoError(t, err)

	recs, err := b.FetchHistory(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, string(recs[0]), `"eventType":"payment_issue"`)

	n, err := normalize.Normalize(recs[0])
	require.NoError(t, err)
	assert.Equal(t, "p1", n.ID)
	assert.Equal(t, model.ChannelInternal, n.Channel)
	assert.True(t, n.Meta.WasPush)
	assert.Equal(t, "PAY-1", n.Meta.Attrs["paymentId"])
}

func TestMarkRead(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	id, err := b.Insert(ctx, Seed{SubscriberID: "u", Title: "hello", CreatedAt: t0})
	require.NoError(t, err)

	ok, err := b.MarkRead(ctx, id, "u")
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := b.FetchPage(ctx, "u", 1, 10)
	require.NoError(t, err)
	n, err := normalize.Normalize(recs[0])
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	ok, err = b.MarkRead(ctx, "missing", "u")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.MarkRead(ctx, id, "another-user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerate(t *testing.T) {
	b := newTestBackend(t)
	b.now = func() time.Time { return t0 }
	ctx := context.Background()
	rnd := rand.New(rand.NewPCG(1, 2))

	for range 20 {
		s, err := b.Generate(ctx, rnd, "u")
		require.NoError(t, err)
		assert.NotEmpty(t, s.ID)
		assert.NotEmpty(t, s.Title)
		assert.NotEqual(t, model.KindGeneric, model.KindFromEventType(s.EventType))
	}

	count, err := b.Count(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestPopulate(t *testing.T) {
	b := newTestBackend(t)
	b.now = func() time.Time { return t0 }
	ctx := context.Background()

	require.NoError(t, b.Populate(ctx, rand.New(rand.NewPCG(3, 4)), "u", 5))

	recs, err := b.FetchPage(ctx, "u", 1, 50)
	require.NoError(t, err)
	list, dropped := normalize.NormalizeAll(recs)
	assert.Zero(t, dropped)
	assert.Len(t, list, 5)
	for _, n := range list {
		assert.True(t, n.CreatedAt.Before(t0))
	}
}
