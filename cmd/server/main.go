// Package main is the entry point for the triagewatch dashboard service.
// It keeps a live, self-healing view of the triage classification backend:
// a websocket push channel for deltas, periodic REST snapshots for
// reconciliation, and an HTTP API serving the presentation state.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/triagewatch/triagewatch/internal/backoff"
	"github.com/triagewatch/triagewatch/internal/clients/triage"
	"github.com/triagewatch/triagewatch/internal/config"
	"github.com/triagewatch/triagewatch/internal/database"
	"github.com/triagewatch/triagewatch/internal/dispatch"
	"github.com/triagewatch/triagewatch/internal/events"
	"github.com/triagewatch/triagewatch/internal/export"
	"github.com/triagewatch/triagewatch/internal/fetch"
	"github.com/triagewatch/triagewatch/internal/history"
	"github.com/triagewatch/triagewatch/internal/notify"
	"github.com/triagewatch/triagewatch/internal/render"
	"github.com/triagewatch/triagewatch/internal/server"
	"github.com/triagewatch/triagewatch/internal/store"
	"github.com/triagewatch/triagewatch/internal/syncer"
	"github.com/triagewatch/triagewatch/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting triagewatch")

	// Event plumbing shared by the push channel, syncer and SSE stream
	eventBus := events.NewBus()
	eventMgr := events.NewManager(eventBus, log)

	// History journal (sqlite). Journaling is best-effort: a failed open
	// disables it but never blocks the dashboard.
	var historyRepo *history.Repository
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileJournal,
		Name:    "history",
	})
	if err != nil {
		log.Warn().Err(err).Msg("History journal unavailable, continuing without it")
	} else {
		defer historyDB.Close()
		historyRepo, err = history.NewRepository(historyDB.Conn())
		if err != nil {
			log.Warn().Err(err).Msg("History schema initialization failed, continuing without journal")
			historyRepo = nil
		}
	}

	// Core state: reconciliation store and presentation renderer
	st := store.New(cfg.RecentWindowSize, log)
	renderer := render.New(st, log)

	// Notifications, with the optional webhook probed once here
	notifications := notify.NewManager(cfg.NotificationTTL, cfg.NotifyWebhookURL, log)
	defer notifications.Close()

	// Snapshot path: REST client -> concurrent fetcher -> syncer
	restClient := triage.NewClient(cfg.APIBaseURL)
	fetcher := fetch.New(restClient, cfg.RecentWindowSize, log)
	syncSvc := syncer.New(fetcher, st, historyRepo, notifications, eventMgr, cfg.PollInterval, log)

	// Push path: websocket channel -> FIFO dispatcher -> syncer handlers
	dispatcher := dispatch.New(syncSvc.Handlers(), 0, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	timer := backoff.New(backoff.PolicyFixed, cfg.ReconnectDelay, 0)
	push := triage.NewPushChannel(cfg.PushURL, dispatcher, timer, eventMgr, log)
	if err := push.Start(); err != nil {
		log.Warn().Err(err).Msg("Push channel offline at startup, reconnect loop is running")
	}
	defer push.Stop()

	// Optional S3-compatible export uploads
	var uploader *export.Uploader
	if cfg.Export.Enabled() {
		uploader, err = export.NewUploader(context.Background(), cfg.Export, log)
		if err != nil {
			log.Warn().Err(err).Msg("Export uploads disabled")
			uploader = nil
		}
	}
	exporter := export.NewService(st, cfg.DataDir, uploader, log)

	// Startup refresh plus the periodic schedule
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := syncSvc.Start(startupCtx); err != nil {
		startupCancel()
		log.Fatal().Err(err).Msg("Failed to start refresh schedule")
	}
	startupCancel()
	defer syncSvc.Stop()

	srv := server.New(server.Config{
		Log:           log,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		Store:         st,
		Renderer:      renderer,
		Notifications: notifications,
		Exporter:      exporter,
		History:       historyRepo,
		Push:          push,
		Refresher:     syncSvc,
		EventBus:      eventBus,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
