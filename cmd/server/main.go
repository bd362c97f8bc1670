package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/me/gosched/internal/config"
	"github.com/me/gosched/internal/logging"
	"github.com/me/gosched/internal/scheduler"
	"github.com/me/gosched/internal/server"
	"github.com/me/gosched/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newServerCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServerCmd() *cobra.Command {
	var (
		configFile string
		debug      bool
		paused     bool
		flags      = config.DefaultServerConfig()
	)

	cmd := &cobra.Command{
		Use:           "gosched-server",
		Short:         "Run the gosched job scheduling server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			overlayFlags(cmd, &cfg, flags)
			if debug {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cfg, paused)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "YAML config file (GOSCHED_* env vars override it)")
	f.StringVar(&flags.Addr, "addr", flags.Addr, "Listen address")
	f.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format (text, json)")
	f.StringVar(&flags.DBPath, "db", flags.DBPath, "Database path (empty for ~/.gosched/gosched.db)")
	f.IntVar(&flags.MaxConcurrent, "max-concurrent", flags.MaxConcurrent, "Jobs allowed to run at once")
	f.DurationVar(&flags.PollInterval, "poll-interval", flags.PollInterval, "Time between admission cycles")
	f.DurationVar(&flags.ErrorBackoff, "error-backoff", flags.ErrorBackoff, "Wait after a failed admission cycle")
	f.IntVar(&flags.Quantum, "quantum", flags.Quantum, "Round robin time slice in seconds of work")
	f.DurationVar(&flags.TimeUnit, "time-unit", flags.TimeUnit, "Wall-clock length of one second of declared work")
	f.Float64Var(&flags.RateLimit, "rate-limit", flags.RateLimit, "Mutating API requests per second (0 disables)")
	f.IntVar(&flags.RateBurst, "rate-burst", flags.RateBurst, "Burst size for the API rate limit")
	f.BoolVar(&debug, "debug", false, "Shorthand for --log-level=debug")
	f.BoolVar(&paused, "paused", false, "Do not start the scheduler until POST /api/v1/scheduler/start")
	return cmd
}

// overlayFlags copies the flags set on the command line over cfg.
func overlayFlags(cmd *cobra.Command, cfg *config.ServerConfig, flags config.ServerConfig) {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = flags.Addr
	}
	if changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if changed("log-format") {
		cfg.LogFormat = flags.LogFormat
	}
	if changed("db") {
		cfg.DBPath = flags.DBPath
	}
	if changed("max-concurrent") {
		cfg.MaxConcurrent = flags.MaxConcurrent
	}
	if changed("poll-interval") {
		cfg.PollInterval = flags.PollInterval
	}
	if changed("error-backoff") {
		cfg.ErrorBackoff = flags.ErrorBackoff
	}
	if changed("quantum") {
		cfg.Quantum = flags.Quantum
	}
	if changed("time-unit") {
		cfg.TimeUnit = flags.TimeUnit
	}
	if changed("rate-limit") {
		cfg.RateLimit = flags.RateLimit
	}
	if changed("rate-burst") {
		cfg.RateBurst = flags.RateBurst
	}
}

func run(cfg config.ServerConfig, paused bool) error {
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	dbPath, err := resolveDBPath(cfg.DBPath)
	if err != nil {
		return err
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", "path", dbPath)

	schedCfg := scheduler.DefaultConfig()
	schedCfg.MaxConcurrent = cfg.MaxConcurrent
	schedCfg.PollInterval = cfg.PollInterval
	schedCfg.ErrorBackoff = cfg.ErrorBackoff
	schedCfg.Quantum = cfg.Quantum
	schedCfg.Executor.TimeUnit = cfg.TimeUnit
	engine := scheduler.NewEngine(st, schedCfg, logger)

	requeued, failed, err := engine.Recover(ctx, st)
	if err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	logger.Info("jobs recovered", "requeued", requeued, "failed", failed)

	srv := server.New(cfg, st, engine, logger, server.WithBaseContext(ctx))
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !paused {
		engine.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Stop scheduler before HTTP server.
		engine.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// resolveDBPath falls back to ~/.gosched/gosched.db and creates the parent
// directory of the database file.
func resolveDBPath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".gosched", "gosched.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	return path, nil
}
