package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/herdwatch/live-overlay/internal/detection"
	"github.com/herdwatch/live-overlay/internal/feed"
	"github.com/herdwatch/live-overlay/internal/logger"
	"github.com/herdwatch/live-overlay/internal/metrics"
	"github.com/herdwatch/live-overlay/internal/overlay"
	"github.com/herdwatch/live-overlay/internal/settings"
	"github.com/herdwatch/live-overlay/internal/webmonitor"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg := webmonitor.DefaultConfig()
	configPath := os.Getenv("OVERLAY_CONFIG")
	var pprofAddr string

	// A first pass only to find -config; every other flag is applied after
	// the file and the environment.
	args := os.Args[1:]
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if v, ok := strings.CutPrefix(name, "config="); ok {
			configPath = v
		} else if name == "config" && i+1 < len(args) {
			configPath = args[i+1]
		}
	}
	if configPath != "" {
		loaded, err := webmonitor.LoadFile(cfg, configPath)
		if err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
		cfg = loaded
	}
	cfg = webmonitor.ApplyEnv(cfg)

	flag.StringVar(&configPath, "config", configPath, "YAML config file")
	flag.StringVar(&cfg.Addr, "http", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.FeedURL, "feed", cfg.FeedURL, "Detection service base URL (empty: always simulate)")
	flag.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "Detection feed poll interval")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Detection feed request timeout")
	flag.BoolVar(&cfg.StartPaused, "paused", cfg.StartPaused, "Start with polling paused")
	flag.StringVar(&cfg.SettingsDB, "settings-db", cfg.SettingsDB, "Settings SQLite database path")
	flag.StringVar(&pprofAddr, "pprof", "", "pprof server address (empty: disabled)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")
	flag.Parse()

	// Initialize logger
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	logger.Info("Main", "Live overlay starting...")
	logger.Info("Main", "Log level: %s", level)

	settingsStore, err := settings.OpenSQLite(context.Background(), cfg.SettingsDB)
	if err != nil {
		log.Fatalf("Failed to open settings: %v", err)
	}
	defer settingsStore.Close()

	var fetcher feed.Fetcher = feed.NewClient(cfg.FeedURL, cfg.RequestTimeout)
	if cfg.FeedURL == "" {
		logger.Warn("Main", "No feed URL configured, detections will be simulated")
		fetcher = feed.FetcherFunc(func(context.Context) (detection.Set, error) {
			return nil, feed.ErrFeedUnavailable
		})
	}

	m := metrics.New()
	store := overlay.NewStore()
	poller := feed.NewPoller(fetcher, store,
		feed.WithInterval(cfg.PollInterval),
		feed.WithDiagnostics(diagnostics(m)),
	)

	server := webmonitor.NewServer(cfg, store, poller, settingsStore, m)
	server.Start()
	server.Monitor().SetPlaying(!cfg.StartPaused)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	if pprofAddr != "" {
		go func() {
			logger.Info("Main", "pprof listening on %s", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				logger.Error("Main", "pprof server error: %v", err)
			}
		}()
	}

	go func() {
		logger.Info("Main", "Overlay server listening on %s (feed: %q, interval: %v)", cfg.Addr, cfg.FeedURL, poller.Interval())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")

	poller.Close()
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Main", "Error during shutdown: %v", err)
	}

	logger.Info("Main", "Server stopped after %d polls (%s live, %s simulated)",
		m.Polls.Load(), humanize.Comma(int64(m.LiveSets.Load())), humanize.Comma(int64(m.SimulatedSets.Load())))
}

// diagnostics feeds every published update into metrics and logs source
// changes.
func diagnostics(m *metrics.Metrics) func(detection.Update) {
	var (
		mu   sync.Mutex
		last detection.Source
	)
	return func(u detection.Update) {
		m.RecordUpdate(u)

		mu.Lock()
		changed := u.Source != last
		last = u.Source
		mu.Unlock()
		if !changed {
			return
		}
		if u.Source == detection.SourceLive {
			logger.Info("FeedPoller", "Live detections resumed (%d subjects)", len(u.Set))
			return
		}
		logger.Warn("FeedPoller", "Falling back to simulated detections: %v", u.Cause)
	}
}
