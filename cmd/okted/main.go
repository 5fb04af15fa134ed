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
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/awaistahir/okte-windows/internal/app"
	"github.com/awaistahir/okte-windows/internal/config"
	"github.com/awaistahir/okte-windows/internal/scheduler"
	"github.com/awaistahir/okte-windows/internal/store"
	"github.com/awaistahir/okte-windows/internal/uiapi"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	var cfgFile string
	var listen string
	var dbPath string

	decimal.MarshalJSONWithoutQuotes = true

	rootCmd := &cobra.Command{
		Use:   "okted",
		Short: "OKTE price window daemon with HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if dbPath != "" {
				cfg.DB = dbPath
			}
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.okte/config.yaml)")
	rootCmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Database path (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func run(cfg *config.Config) error {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	st, err := store.NewStore(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	a, err := app.New(cfg, app.Options{Store: st, Logger: logger})
	if err != nil {
		return err
	}
	a.Restore()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(a, cfg.FallbackInterval, logger)
	if err := sched.Register(ctx); err != nil {
		return err
	}
	sched.Start()
	go sched.RunNow(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           uiapi.NewServer(a).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("okted listening",
			"addr", cfg.Listen,
			"db", cfg.DB,
			"timezone", cfg.Timezone,
			"masters", len(cfg.Masters),
			"calculators", len(cfg.Calculators))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			sched.Stop()
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	sched.Stop()

	return nil
}
