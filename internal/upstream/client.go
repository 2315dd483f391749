// Package upstream consumes the raw telemetry WebSocket feed.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/metrics"
	"github.com/deepseaguard/insight-engine/internal/models"
)

const (
	handshakeWait = 15 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
	writeWait     = 10 * time.Second
	maxFrameBytes = 1 << 20

	defaultReconnectDelay = 5 * time.Second
)

// Handler consumes one decoded telemetry record. Records are delivered
// one at a time, in feed order; the next frame is not read until the
// handler returns.
type Handler func(ctx context.Context, rec models.TelemetryRecord) error

// Client maintains a persistent connection to the telemetry feed and
// hands every decoded frame to its handler.
type Client struct {
	url     string
	handler Handler

	// reconnectDelay is the fixed pause between connection attempts.
	reconnectDelay time.Duration
}

// NewClient returns a client for the given feed URL.
func NewClient(url string, handler Handler) *Client {
	return &Client{
		url:            url,
		handler:        handler,
		reconnectDelay: defaultReconnectDelay,
	}
}

// Run connects to the feed and consumes frames until ctx is cancelled,
// reconnecting after a fixed delay whenever the connection drops.
func (c *Client) Run(ctx context.Context) error {
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frames, err := c.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that served frames was healthy; only unbroken
		// runs of fruitless attempts count as repeated failure.
		if frames > 0 {
			consecutiveFailures = 0
		}
		consecutiveFailures++
		metrics.RecordUpstreamReconnect()

		if consecutiveFailures >= 3 {
			log.Warn().Err(err).
				Str("url", c.url).
				Int("failures", consecutiveFailures).
				Dur("retry_in", c.reconnectDelay).
				Msg("Telemetry feed failing repeatedly")
		} else {
			log.Info().Err(err).
				Str("url", c.url).
				Dur("retry_in", c.reconnectDelay).
				Msg("Telemetry feed disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// connectAndConsume dials the feed and pumps frames to the handler until
// the connection fails. It reports how many frames it delivered so the
// caller can tell a healthy-but-dropped connection from a fruitless one.
func (c *Client) connectAndConsume(ctx context.Context) (int, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeWait,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("dialing telemetry feed: %w", err)
	}
	defer conn.Close()

	log.Info().Str("url", c.url).Msg("Connected to telemetry feed")

	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Per-connection context: tears down the ping loop when this
	// connection ends, and closes the connection when ctx is cancelled
	// so the blocking read below unblocks.
	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()
	go c.pingLoop(connCtx, conn)

	frames := 0
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return frames, fmt.Errorf("reading telemetry frame: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var rec models.TelemetryRecord
		if err := json.Unmarshal(frame, &rec); err != nil {
			metrics.RecordMalformedFrame()
			log.Warn().Err(err).Msg("Dropping malformed telemetry frame")
			continue
		}
		rec.Raw = append(json.RawMessage(nil), frame...)

		if err := c.handler(ctx, rec); err != nil {
			log.Error().Err(err).
				Str("auv_id", rec.VehicleID).
				Msg("Telemetry record processing failed")
		}
		frames++
	}
}

// pingLoop keeps the feed connection alive. It also closes the
// connection when ctx is cancelled, which unblocks the read loop.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
