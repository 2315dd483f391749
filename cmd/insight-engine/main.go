package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deepseaguard/insight-engine/internal/alerting"
	"github.com/deepseaguard/insight-engine/internal/api"
	"github.com/deepseaguard/insight-engine/internal/config"
	"github.com/deepseaguard/insight-engine/internal/geofence"
	"github.com/deepseaguard/insight-engine/internal/ingest"
	"github.com/deepseaguard/insight-engine/internal/insights"
	"github.com/deepseaguard/insight-engine/internal/logging"
	"github.com/deepseaguard/insight-engine/internal/metrics"
	"github.com/deepseaguard/insight-engine/internal/scanner"
	"github.com/deepseaguard/insight-engine/internal/store"
	"github.com/deepseaguard/insight-engine/internal/thresholds"
	"github.com/deepseaguard/insight-engine/internal/upstream"
	"github.com/deepseaguard/insight-engine/internal/websocket"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "insight-engine",
	Short:   "Insight Engine - real-time AUV monitoring and alerting",
	Long:    `Insight Engine ingests live AUV telemetry, evaluates environmental thresholds and geofence zones, tracks silent vehicles, and fans alerts out to dashboard subscribers.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(loadZonesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Insight Engine %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup logs
	logging.Init(logging.Config{
		Format:    "json",
		Level:     "info",
		Component: "insight-engine",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Re-initialize logging with configuration-driven settings
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "insight-engine",
	})

	log.Info().Str("version", Version).Msg("Starting Insight Engine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Serve(ctx, cfg.MetricsAddr)

	st, err := store.New(ctx, cfg.PoolURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to spatial store")
	}
	defer st.Close()

	hub := websocket.NewHub(cfg.AllowedOrigins)
	writer := alerting.NewWriter(st)
	ingestor := ingest.NewIngestor(
		st,
		thresholds.NewEvaluator(config.DefaultThresholds()),
		writer,
		geofence.NewEvaluator(st),
		hub,
	)
	feed := upstream.NewClient(cfg.TelemetryWSURL, ingestor.Process)
	deadScanner := scanner.New(st, writer, cfg.DeadVehicleTimeout(), cfg.ScanInterval())

	// NOTE: ReadHeaderTimeout instead of ReadTimeout so the timeout does
	// not survive the WebSocket upgrade on /ws/alert and kill idle
	// subscribers.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(insights.NewService(st), hub),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return feed.Run(gctx)
	})

	g.Go(func() error {
		return deadScanner.Run(gctx)
	})

	// Relay scanner findings to subscribers. Ends when the scanner closes
	// its channel on shutdown.
	g.Go(func() error {
		for event := range deadScanner.Events() {
			hub.Broadcast(websocket.EventDeadVehicle, event)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Server stopped")
}
