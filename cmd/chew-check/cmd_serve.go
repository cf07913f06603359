// cmd/chew-check/cmd_serve.go
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mcp-chew-check/internal/config"
	"mcp-chew-check/internal/logging"
	"mcp-chew-check/internal/photostore"
	"mcp-chew-check/internal/server"
)

const photoCleanupInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chew check MCP server over HTTP",
	Long: `Serves the chew_check, check_food_name, evaluate_tags, explain_verdict and
get_checks tools as JSON tool calls on POST /. GET /health and GET /stats report
status and counters. Scanned photos older than PHOTO_RETENTION are removed hourly.`,
	RunE: runServe,
}

var (
	serveHost   string
	servePort   int
	serveDBPath string
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host address (overrides CHEW_CHECK_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port (overrides CHEW_CHECK_PORT)")
	serveCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Database path (overrides CHEW_CHECK_DB_PATH)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(func(cfg *config.Config) {
		if cmd.Flags().Changed("host") {
			cfg.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if cmd.Flags().Changed("db-path") {
			cfg.DBPath = serveDBPath
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New("server")
	srv := server.NewChewCheckServer(&server.Config{
		Host:         a.cfg.Host,
		Port:         a.cfg.Port,
		Version:      version,
		RateLimitRPS: a.cfg.RateLimitRPS,
		RateBurst:    a.cfg.RateBurst,
	}, a.service, a.metrics, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("error during shutdown", slog.Any("error", err))
		}
		return a.metrics.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		cleanupPhotos(gctx, a.photos, a.cfg.PhotoRetention, logging.New("photostore"))
		return nil
	})

	return g.Wait()
}

// cleanupPhotos removes expired photos now and then every photoCleanupInterval.
func cleanupPhotos(ctx context.Context, photos *photostore.Store, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		retention = photostore.DefaultRetention
	}
	ticker := time.NewTicker(photoCleanupInterval)
	defer ticker.Stop()
	for {
		removed, err := photos.Cleanup(retention)
		if err != nil {
			logger.Warn("photo cleanup failed", slog.Any("error", err))
		} else if removed > 0 {
			logger.Info("removed expired photos", slog.Int("count", removed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
