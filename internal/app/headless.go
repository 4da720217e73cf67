package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/readstate"
	"github.com/nhle/notification-sync/internal/source"
	appsync "github.com/nhle/notification-sync/internal/sync"
)

// RunHeadless logs every tick outcome until ctx is cancelled, then stops
// the subscription and waits for its loop to exit.
func RunHeadless(ctx context.Context, sub *appsync.Subscription, logger zerolog.Logger) {
	logger = logger.With().Str("comp", "headless").Logger()
	defer func() {
		sub.Stop()
		<-sub.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-sub.Results():
			logResult(logger, r)
		}
	}
}

func logResult(logger zerolog.Logger, r appsync.TickResult) {
	if r.Err != nil {
		ev := logger.Warn().Err(r.Err).Int("last_known", len(r.Items))
		if source.IsAuthError(r.Err) {
			ev = ev.Bool("auth", true)
		}
		ev.Msg("couldn't refresh")
		return
	}

	counts := readstate.View(r.Items, model.FilterAll).Counts
	if r.Seed {
		logger.Info().
			Int("total", counts.Total).
			Int("unread", counts.Unread).
			Msg("seeded")
		return
	}

	for _, n := range r.Diff {
		logger.Info().
			Str("id", n.ID).
			Str("kind", string(n.Kind)).
			Str("channel", string(n.Channel)).
			Bool("was_push", n.Meta.WasPush).
			Time("created_at", n.CreatedAt).
			Msg(n.Title)
	}
	logger.Debug().Int("new", len(r.Diff)).Int("unread", counts.Unread).Msg("tick")
}
