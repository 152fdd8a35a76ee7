package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/fireflyviz/internal/config"
	"github.com/cwbudde/fireflyviz/internal/logger"
	"github.com/cwbudde/fireflyviz/internal/server"
	"github.com/cwbudde/fireflyviz/internal/store"
)

var (
	serveConfigPath string
	serveAddr       string
	serveDataDir    string
	serveInterval   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the animation HTTP server",
	Long: `Serves the session API. Each session animates a firefly run, one
generation per interval, and streams snapshots over Server-Sent Events.
Completed sessions are saved to the data directory unless it is empty.`,
	RunE: runServe,
}

func init() {
	defaults := config.Default().Server
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "YAML configuration (server section)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", defaults.Addr, "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", defaults.DataDir, "Directory for completed runs (empty disables persistence)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", defaults.Interval, "Default time between animated steps")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := config.Default().Server
	if serveConfigPath != "" {
		cfg, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return err
		}
		sc = cfg.Server
		if level, ok := fileLogLevel(cmd.Flags(), cfg); ok {
			logger.Setup(level, logFormat, os.Stderr)
		}
	}
	fs := cmd.Flags()
	if fs.Changed("addr") || serveConfigPath == "" {
		sc.Addr = serveAddr
	}
	if fs.Changed("data-dir") || serveConfigPath == "" {
		sc.DataDir = serveDataDir
	}
	if fs.Changed("interval") || serveConfigPath == "" {
		sc.Interval = serveInterval
	}
	if sc.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", sc.Interval)
	}

	var runStore *store.FSStore
	if sc.DataDir != "" {
		var err error
		runStore, err = store.NewFSStore(sc.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(sc.Addr, runStore, sc.Interval)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	slog.Info("Serving", "addr", sc.Addr, "data_dir", sc.DataDir, "interval", sc.Interval)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
