package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/notification-sync/internal/credential"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/popup"
	"github.com/nhle/notification-sync/internal/source"
	"github.com/nhle/notification-sync/internal/source/email"
	"github.com/nhle/notification-sync/internal/source/httpapi"
	"github.com/nhle/notification-sync/internal/source/mock"
	"github.com/nhle/notification-sync/internal/source/redisfeed"
	appsync "github.com/nhle/notification-sync/internal/sync"
)

// mockPopulateCount is how many notifications a fresh mock feed starts
// with.
const mockPopulateCount = 12

// validateTimeout bounds the startup reachability check of the REST API.
const validateTimeout = 5 * time.Second

// Opened is a ready backend plus what the caller must release.
type Opened struct {
	Backend source.Backend

	// Mock is set only for the mock backend, which also accepts
	// injected notifications.
	Mock *mock.Backend

	Close func() error
}

// OpenBackend builds the backend selected by cfg.Backend.Kind. Secrets
// come from the environment first and the keyring second; creds may be
// nil when no keyring is available.
func OpenBackend(
	ctx context.Context,
	cfg *model.AppConfig,
	creds *credential.Store,
	logger zerolog.Logger,
) (*Opened, error) {
	nop := func() error { return nil }

	switch cfg.Backend.Kind {
	case model.BackendHTTP:
		token, err := creds.Resolve(os.Getenv("NOTIF_API_TOKEN"), credential.APITokenKey)
		if err != nil {
			return nil, fmt.Errorf("loading api token: %w", err)
		}
		adapter := httpapi.NewAdapter(cfg.Backend.BaseURL, token, httpapi.ClientOptions{
			RatePerSec:      cfg.Backend.RatePerSec,
			BreakerFailures: cfg.Backend.BreakerFailures,
			BreakerCooldown: cfg.Backend.BreakerCooldown,
			Timeout:         cfg.Poll.FetchTimeout,
			Logger:          logger,
		})

		// An unreachable API is not fatal; the engine keeps retrying.
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		err = adapter.ValidateConnection(vctx, cfg.SubscriberID)
		cancel()
		if err != nil {
			logger.Warn().
				Err(err).
				Bool("auth", source.IsAuthError(err)).
				Str("base_url", cfg.Backend.BaseURL).
				Msg("notifications API check failed")
		}
		return &Opened{Backend: adapter, Close: nop}, nil

	case model.BackendMock:
		mb, err := mock.New(":memory:")
		if err != nil {
			return nil, fmt.Errorf("opening mock backend: %w", err)
		}
		rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		if err := mb.Populate(ctx, rnd, cfg.SubscriberID, mockPopulateCount); err != nil {
			mb.Close()
			return nil, err
		}
		logger.Info().Int("count", mockPopulateCount).Msg("mock feed populated")
		return &Opened{Backend: mb, Mock: mb, Close: mb.Close}, nil

	case model.BackendRedis:
		feed, err := redisfeed.New(ctx, cfg.Redis.URL, logger)
		if err != nil {
			return nil, err
		}
		return &Opened{Backend: feed, Close: feed.Close}, nil

	case model.BackendIMAP:
		password, err := creds.Resolve(
			os.Getenv("NOTIF_IMAP_PASSWORD"),
			credential.IMAPPasswordKey(cfg.IMAP.Username),
		)
		if err != nil {
			return nil, fmt.Errorf("loading imap password: %w", err)
		}
		if password == "" {
			return nil, fmt.Errorf("no imap password for %s: set NOTIF_IMAP_PASSWORD or store %q in the keyring",
				cfg.IMAP.Username, credential.IMAPPasswordKey(cfg.IMAP.Username))
		}
		adapter := email.NewAdapter(
			cfg.IMAP.Host, cfg.IMAP.Port,
			cfg.IMAP.Username, password,
			cfg.IMAP.TLS, cfg.IMAP.Mailbox,
		)
		return &Opened{Backend: adapter, Close: nop}, nil

	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// SyncOptions maps configuration onto engine options. A configured
// read grace of zero means the backend always wins.
func SyncOptions(cfg *model.AppConfig) appsync.Options {
	grace := cfg.Read.Grace
	if grace <= 0 {
		grace = -1
	}
	return appsync.Options{
		Interval:       cfg.Poll.Interval,
		IncludeHistory: cfg.Poll.IncludeHistory,
		PageLimit:      cfg.Backend.PageLimit,
		HistoryLimit:   cfg.Backend.HistoryLimit,
		FetchTimeout:   cfg.Poll.FetchTimeout,
		ReadGrace:      grace,
	}
}

// NewPopupQueue builds the pop-up queue and a channel that receives a
// value whenever the queue's visible state may have changed. Signals
// coalesce; readers call Queue.State for the current value.
func NewPopupQueue(cfg model.PopupConfig) (*popup.Queue, <-chan struct{}) {
	changed := make(chan struct{}, 1)
	q := popup.New(popup.Options{
		DisplayFor: cfg.DisplayFor,
		Settle:     cfg.Settle,
		OnChange: func(popup.State) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	return q, changed
}

// enqueueDiff adapts Queue.EnqueueAll to Options.OnDiff.
func enqueueDiff(q *popup.Queue, logger zerolog.Logger) func([]model.Notification) {
	return func(diff []model.Notification) {
		if n := q.EnqueueAll(diff); n > 0 {
			logger.Debug().Int("queued", n).Int("diff", len(diff)).Msg("pop-ups queued")
		}
	}
}

// Start opens the subscription, wiring the pop-up queue to its diffs
// when q is non-nil.
func Start(
	engine *appsync.Engine,
	subscriberID string,
	opts appsync.Options,
	q *popup.Queue,
	logger zerolog.Logger,
) *appsync.Subscription {
	if q != nil {
		prev := opts.OnDiff
		enqueue := enqueueDiff(q, logger)
		opts.OnDiff = func(diff []model.Notification) {
			if prev != nil {
				prev(diff)
			}
			enqueue(diff)
		}
	}
	return engine.Start(subscriberID, opts)
}

// markReadTimeout bounds one acknowledgement round trip.
const markReadTimeout = 15 * time.Second
