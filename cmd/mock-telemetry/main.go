// Command mock-telemetry serves a synthetic AUV telemetry feed over
// WebSocket for exercising the insight engine end to end.
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

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepseaguard/insight-engine/internal/logging"
)

const (
	minFrameDelay = 8 * time.Second
	maxFrameDelay = 13 * time.Second
	writeWait     = 10 * time.Second
)

var listenAddr string

var rootCmd = &cobra.Command{
	Use:   "mock-telemetry",
	Short: "Synthetic AUV telemetry feed",
	Long:  `Broadcasts randomised AUV telemetry frames on /ws/telemetry, with weighted threshold excursions so downstream alerting has something to chew on.`,
	Run: func(cmd *cobra.Command, args []string) {
		runFeed()
	},
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "addr", ":8001", "listen address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev tool; anyone who can reach it may subscribe.
	CheckOrigin: func(*http.Request) bool { return true },
}

func runFeed() {
	logging.Init(logging.Config{
		Format:    "console",
		Level:     "info",
		Component: "mock-telemetry",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/telemetry", handleTelemetry)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Feed shutdown error")
		}
	}()

	log.Info().Str("addr", listenAddr).Msg("Mock telemetry feed listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Feed server failed")
	}
	log.Info().Msg("Feed stopped")
}

// handleTelemetry streams frames to one subscriber until it goes away.
// Each subscriber gets its own generator, so streams are independent.
func handleTelemetry(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Upgrade failed")
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log.Info().Str("remote", remote).Msg("Feed subscriber connected")

	// Drain inbound frames so pings get answered and disconnects surface.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	gen := newGenerator(time.Now().UnixNano())
	for {
		rec := gen.frame(time.Now())
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(rec); err != nil {
			log.Info().Str("remote", remote).Err(err).Msg("Feed subscriber disconnected")
			return
		}
		log.Debug().Str("auv_id", rec.VehicleID).Msg("Frame sent")

		delay := minFrameDelay + time.Duration(gen.r.Float64()*float64(maxFrameDelay-minFrameDelay))
		select {
		case <-done:
			log.Info().Str("remote", remote).Msg("Feed subscriber disconnected")
			return
		case <-time.After(delay):
		}
	}
}
