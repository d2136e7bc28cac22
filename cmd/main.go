package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/config"
	"tidbyt.dev/timetable/downloader"
	"tidbyt.dev/timetable/logging"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/parse"
	"tidbyt.dev/timetable/storage"
)

var rootCmd = &cobra.Command{
	Use:               "timetable",
	Short:             "Caltrain timetable tool",
	Long:              "Builds timetables from a GTFS feed and follows its realtime updates",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath    string
	staticPath    string
	logLevel      string
	staticHeaders []string

	cfg    config.AppConfig
	logger *slog.Logger
)

const (
	staticTimeout = 2 * time.Minute
	staticMaxSize = 100 << 20
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file")
	rootCmd.PersistentFlags().StringVarP(&staticPath, "static", "", "", "GTFS static zip, directory or URL")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "Log level")
	rootCmd.PersistentFlags().StringSliceVarP(
		&staticHeaders,
		"static-header",
		"",
		[]string{},
		"GTFS static HTTP header",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	// Flags win over both the config file and the environment.
	if staticPath != "" {
		os.Setenv(config.EnvStatic, staticPath)
	}
	if logLevel != "" {
		os.Setenv(config.EnvLogLevel, logLevel)
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if cfg.Logging.Format == "json" {
		logger = logging.NewStructuredLogger(os.Stderr, level)
	} else {
		logger = logging.NewTextLogger(os.Stderr, level)
	}
	slog.SetDefault(logger)

	return nil
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Filesystem backed if a cache file is configured, in memory
// otherwise.
func newDownloader() (downloader.Downloader, error) {
	if cfg.Feed.CacheFile == "" {
		return downloader.NewMemoryDownloader(), nil
	}
	fs, err := downloader.NewFilesystem(cfg.Feed.CacheFile)
	if err != nil {
		return nil, fmt.Errorf("creating download cache: %w", err)
	}
	return fs, nil
}

func readTables(ctx context.Context, d downloader.Downloader) (*parse.Tables, error) {
	static := cfg.Feed.Static

	if isURL(static) {
		headers, err := parseHeaders(staticHeaders)
		if err != nil {
			return nil, fmt.Errorf("invalid static header: %w", err)
		}
		buf, err := d.Get(ctx, static, headers, downloader.GetOptions{
			MaxSize:  staticMaxSize,
			Timeout:  staticTimeout,
			Cache:    true,
			CacheTTL: time.Duration(cfg.Feed.CacheTTLSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("downloading static feed: %w", err)
		}
		return parse.ParseZip(buf)
	}

	info, err := os.Stat(static)
	if err != nil {
		return nil, fmt.Errorf("static feed: %w", err)
	}
	if info.IsDir() {
		return parse.ParseDir(static)
	}

	buf, err := os.ReadFile(static)
	if err != nil {
		return nil, fmt.Errorf("reading static feed: %w", err)
	}
	return parse.ParseZip(buf)
}

func loadSchedule(ctx context.Context, d downloader.Downloader) (*timetable.Schedule, error) {
	start := time.Now()

	tables, err := readTables(ctx, d)
	if err != nil {
		return nil, err
	}

	opts := []timetable.Option{
		timetable.WithStopIDLength(cfg.Feed.StopIDLength),
		timetable.WithStopNameSuffix(cfg.Feed.StopNameSuffix),
		timetable.WithLogger(logger),
	}
	if cfg.Feed.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Feed.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
		opts = append(opts, timetable.WithLocation(loc))
	}

	s, err := timetable.Load(tables, opts...)
	if err != nil {
		return nil, err
	}

	logging.LogOperation(logger, "schedule loaded",
		slog.String("static", cfg.Feed.Static),
		slog.Int("stops", len(s.Stops())),
		slog.Int("trips", len(s.Trips())),
		slog.Int("patterns", len(s.ServiceStopKeys())),
		slog.Duration("duration", time.Since(start)))

	return s, nil
}

func openStorage() (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    true,
			Directory: cfg.Storage.Directory,
		})
	case "postgres":
		return storage.NewPSQLStorage(cfg.Storage.DSN, false)
	}
	return storage.NewMemoryStorage(), nil
}

func newFetcher(d downloader.Downloader, m *metrics.Metrics) *timetable.Fetcher {
	f := timetable.NewFetcher(cfg.Realtime.BaseURL, cfg.Realtime.APIKey, cfg.Realtime.Agency, d)
	if cfg.Realtime.TimeoutSec > 0 {
		f.Timeout = time.Duration(cfg.Realtime.TimeoutSec) * time.Second
	}
	if cfg.Realtime.RateLimitRPS > 0 {
		f.Options.Limiter = rate.NewLimiter(rate.Limit(cfg.Realtime.RateLimitRPS), 1)
	}
	f.Metrics = m
	f.Logger = logger
	return f
}

// Resolves an optional YYYY-MM-DD argument to a service day, today
// if absent.
func serviceDay(s *timetable.Schedule, args []string) (time.Time, error) {
	if len(args) == 0 || args[0] == "" {
		return s.StartOfDay(time.Now()), nil
	}
	return s.ParseDate(args[0])
}
