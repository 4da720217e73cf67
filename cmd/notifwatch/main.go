package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/nhle/notification-sync/internal/app"
	"github.com/nhle/notification-sync/internal/credential"
	"github.com/nhle/notification-sync/internal/logging"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/popup"
	appsync "github.com/nhle/notification-sync/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifwatch:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine.
	_ = godotenv.Load()

	var (
		cfgPath     string
		headless    bool
		subscriber  string
		writeConfig bool
	)
	flag.StringVar(&cfgPath, "config", model.DefaultConfigPath(), "path to config yaml")
	flag.BoolVar(&headless, "headless", false, "log new notifications instead of opening the inbox")
	flag.StringVar(&subscriber, "subscriber", "", "subscriber id (overrides config)")
	flag.BoolVar(&writeConfig, "write-config", false, "write the effective config to --config and exit")
	flag.Parse()

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if subscriber != "" {
		cfg.SubscriberID = subscriber
	}
	if writeConfig {
		return saveEffectiveConfig(os.Stdout, cfgPath, cfg)
	}

	logger, closer, err := logging.New(cfg.Log, headless)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	creds, err := credential.Open()
	if err != nil {
		// Environment variables still work without a keyring.
		logger.Warn().Err(err).Msg("keyring unavailable")
	}

	opened, err := app.OpenBackend(ctx, cfg, creds, logger)
	if err != nil {
		return err
	}
	defer opened.Close()

	logger.Info().
		Str("backend", cfg.Backend.Kind).
		Str("subscriber", cfg.SubscriberID).
		Dur("interval", cfg.Poll.Interval).
		Bool("popups", cfg.Popup.Enabled).
		Msg("starting")

	engine := appsync.New(opened.Backend, logger)
	opts := app.SyncOptions(cfg)

	if headless {
		sub := app.Start(engine, cfg.SubscriberID, opts, nil, logger)
		app.RunHeadless(ctx, sub, logger)
		return nil
	}

	var (
		queue   *popup.Queue
		changed <-chan struct{}
	)
	if cfg.Popup.Enabled {
		queue, changed = app.NewPopupQueue(cfg.Popup)
		defer queue.Close()
	}
	sub := app.Start(engine, cfg.SubscriberID, opts, queue, logger)
	defer sub.Stop()

	p := tea.NewProgram(
		app.New(app.Deps{
			Sub:          sub,
			Queue:        queue,
			PopupChanged: changed,
			Mock:         opened.Mock,
			Logger:       logger,
		}),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running inbox: %w", err)
	}
	logger.Info().Msg("stopped")
	return nil
}

// saveEffectiveConfig validates cfg and writes it to path.
func saveEffectiveConfig(w io.Writer, path string, cfg *model.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid config: %w", err)
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", path)
	return nil
}
