package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/logging"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves timetables and realtime state over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDownloader()
	if err != nil {
		return err
	}

	s, err := loadSchedule(ctx, d)
	if err != nil {
		return err
	}

	stor, err := openStorage()
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(stor, logger, "storage")

	m := metrics.New()

	store := state.NewStore(stor)
	store.Logger = logger
	store.Metrics = m
	if err := store.Restore(); err != nil {
		logging.LogError(logger, "restoring session", err)
	}

	srv := &server{
		schedule: s,
		store:    store,
		metrics:  m,
		logger:   logger,
		timeNow:  time.Now,
	}

	if cfg.Realtime.Enabled {
		poller := timetable.NewPoller(newFetcher(d, m), store)
		poller.MinDelay = time.Duration(cfg.Realtime.MinDelaySec) * time.Second
		poller.Logger = logger
		poller.Metrics = m

		go func() {
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.LogError(logger, "poller stopped", err)
			}
		}()
		poller.Request()
		srv.poller = poller
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.LogError(logger, "shutting down server", err)
		}
	}()

	logger.Info("starting server",
		slog.String("addr", httpServer.Addr),
		slog.Bool("realtime", cfg.Realtime.Enabled),
		slog.String("storage", cfg.Storage.Backend))

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
