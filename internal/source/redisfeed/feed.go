// Package redisfeed implements source.Backend on Redis. Producers write
// raw records with Push; the sync engine reads them back in time order.
//
// Layout per subscriber:
//
//	notifsync:{sub}:records  hash    id -> raw JSON record
//	notifsync:{sub}:page     zset    id scored by created-at unix ms
//	notifsync:{sub}:history  zset    id scored by created-at unix ms
package redisfeed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nhle/notification-sync/internal/normalize"
	"github.com/nhle/notification-sync/internal/source"
)

const keyPrefix = "notifsync"

// maxTxRetries bounds optimistic-lock retries in MarkRead.
const maxTxRetries = 3

// Feed is a Redis-backed source.Backend.
type Feed struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

var _ source.Backend = (*Feed)(nil)

// New connects to redisURL (redis:// or rediss://) and pings it.
func New(ctx context.Context, redisURL string, logger zerolog.Logger) (*Feed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second

	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(rdb, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, logger zerolog.Logger) *Feed {
	return &Feed{rdb: rdb, logger: logger.With().Str("comp", "redisfeed").Logger()}
}

// Close closes the underlying client.
func (f *Feed) Close() error {
	return f.rdb.Close()
}

func recordsKey(sub string) string { return keyPrefix + ":" + sub + ":records" }
func pageKey(sub string) string    { return keyPrefix + ":" + sub + ":page" }
func historyKey(sub string) string { return keyPrefix + ":" + sub + ":history" }

// FetchPage returns one page of the page timeline, newest first.
func (f *Feed) FetchPage(
	ctx context.Context,
	subscriberID string,
	page int,
	limit int,
) ([]source.RawRecord, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	start := int64((page - 1) * limit)
	return f.fetch(ctx, subscriberID, pageKey(subscriberID), start, start+int64(limit)-1)
}

// FetchHistory returns the newest limit entries of the history timeline.
func (f *Feed) FetchHistory(
	ctx context.Context,
	subscriberID string,
	limit int,
) ([]source.RawRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return f.fetch(ctx, subscriberID, historyKey(subscriberID), 0, int64(limit)-1)
}

func (f *Feed) fetch(ctx context.Context, sub, timeline string, start, stop int64) ([]source.RawRecord, error) {
	ids, err := f.rdb.ZRevRange(ctx, timeline, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", timeline, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vals, err := f.rdb.HMGet(ctx, recordsKey(sub), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading records for %s: %w", sub, err)
	}

	out := make([]source.RawRecord, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			f.logger.Debug().Str("id", ids[i]).Msg("timeline entry without record")
			continue
		}
		out = append(out, source.RawRecord(s))
	}
	return out, nil
}

// MarkRead rewrites the stored record's read marker inside a WATCH
// transaction. Unknown ids are declined.
func (f *Feed) MarkRead(
	ctx context.Context,
	id string,
	subscriberID string,
) (bool, error) {
	key := recordsKey(subscriberID)
	found := false

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		updated, err := markRecordRead(raw)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, updated)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := f.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("marking %s read: %w", id, err)
		}
		return found, nil
	}
	return false, fmt.Errorf("marking %s read: %w", id, redis.TxFailedErr)
}

// Push stores raw for subscriberID and indexes it on the page timeline,
// or the history timeline when history is set. The record must
// normalize; its id and created-at become the member and score.
func (f *Feed) Push(ctx context.Context, subscriberID string, raw source.RawRecord, history bool) (string, error) {
	n, err := normalize.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("pushing record: %w", err)
	}

	timeline := pageKey(subscriberID)
	if history {
		timeline = historyKey(subscriberID)
	}

	_, err = f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordsKey(subscriberID), n.ID, []byte(raw))
		pipe.ZAdd(ctx, timeline, redis.Z{
			Score:  float64(n.CreatedAt.UnixMilli()),
			Member: n.ID,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("pushing record %s: %w", n.ID, err)
	}
	return n.ID, nil
}

// markRecordRead sets the read marker of whichever shape raw uses and
// leaves every other field as it was.
func markRecordRead(raw []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("stored record is not a JSON object")
	}

	switch {
	case has(fields, "id_notificacion"):
		fields["estado"] = json.RawMessage(`"` + source.StateRead + `"`)
	case has(fields, "_id"):
		fields["isRead"] = json.RawMessage(`true`)
	default:
		fields["status"] = json.RawMessage(`"read"`)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return out, nil
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}
