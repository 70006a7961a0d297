package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// Build information, injected at link time via -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	serveDataDir string
	serveAddr    string
)

var rootCmd = &cobra.Command{
	Use:           "textab",
	Short:         "LaTeX table generator with an HTTP API and live dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the textab API and dashboard server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("textab %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Directory for the config file and database")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides the configured one")
	rootCmd.AddCommand(serveCmd, generateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe() error {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan // Wait for a signal
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			return err
		}

		if action == actionRestart {
			baseLogger.Info("--- Server Restarting ---")
			continue
		}
		break
	}

	baseLogger.Info("textab has shut down.")
	return nil
}

// run hosts one server cycle and returns whenever the server is shut down or restarted
func run(actionChan chan string) (string, error) {
	if err := os.MkdirAll(serveDataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	cm, err := NewConfigManager(filepath.Join(serveDataDir, "config.json"))
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	var logLevel slog.Level
	switch strings.ToLower(config.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	cm.SetLogger(logger)
	logger.Info("Starting server cycle...")

	dbPath := config.Server.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(serveDataDir, "textab.db")
	}
	db, err := initDB(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}
	// Pragmas go through Exec so both sqlite drivers take the same plain-path DSN.
	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Warn("Failed to enable WAL mode", "error", err)
	}
	if _, err = db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("Failed to set busy timeout", "error", err)
	}

	if err = setupAuthSchema(db); err != nil {
		logger.Error("Failed to setup auth schema", "error", err)
	}
	if err = setupSettingsSchema(db); err != nil {
		logger.Error("Failed to setup settings schema", "error", err)
	}
	if err = setupPresetsSchema(db); err != nil {
		logger.Error("Failed to setup presets schema", "error", err)
	}
	if err = setupHistorySchema(db); err != nil {
		logger.Error("Failed to setup history schema", "error", err)
	}

	// The context stops background workers (rate limiter cleanup) when this
	// cycle ends.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := NewServer(ctx, cm, logger, db, actionChan)
	if err != nil {
		_ = db.Close()
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	addr := config.Server.ApiAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{Addr: addr, Handler: server.apiMux}

	if config.Server.DashboardPath != "" {
		watcher, watchErr := NewDashboardWatcher(config.Server.DashboardPath, server.generateAPI.BroadcastReload, logger)
		if watchErr != nil {
			logger.Warn("Dashboard watcher unavailable, live reload disabled", "error", watchErr)
		} else {
			watcher.Start()
			defer func() { _ = watcher.Stop() }()
		}
	}

	go func() {
		logger.Info("Starting api/dashboard server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping server for " + action + "...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return action, nil
}
