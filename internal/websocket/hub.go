// Package websocket fans alert events out to connected dashboard clients.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/metrics"
)

// Event types pushed on the alert stream.
const (
	EventEnvironmental = "environmental_alert"
	EventZoneViolation = "zone_alert"
	EventDeadVehicle   = "dead_auv_alert"

	eventEcho  = "echo"
	eventError = "error"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong or data frame from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingInterval = 30 * time.Second
	// Maximum inbound frame size. Clients only send small echo probes.
	maxFrameBytes = 64 * 1024
	// Outbound queue depth per subscriber before it is dropped as slow.
	sendBuffer = 256
)

// Event is the frame pushed to every subscriber.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Subscriber is a single connected alert-stream client.
type Subscriber struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// enqueue offers a frame to the subscriber without blocking. It reports
// false when the subscriber is closed or its outbound queue is full.
func (s *Subscriber) enqueue(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Hub tracks alert-stream subscribers and broadcasts events to them.
// A single mutex guards the subscriber set; registration, removal and
// broadcast iteration all happen under it.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}

	upgrader websocket.Upgrader

	allowedOrigins []string
}

// NewHub returns a hub that accepts connections from the given origins.
// An empty list allows all origins.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		subscribers:    make(map[*Subscriber]struct{}),
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleAlertStream upgrades the request and serves the subscriber until
// it disconnects.
func (h *Hub) HandleAlertStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade alert stream connection")
		return
	}

	sub := &Subscriber{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.add(sub)

	go sub.writePump()
	go h.readPump(sub)
}

func (h *Hub) add(sub *Subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.SubscriberConnected()
	log.Info().
		Str("subscriber", sub.id).
		Int("total", count).
		Msg("Alert stream subscriber connected")
}

// remove drops the subscriber from the set and closes its outbound queue.
// It is safe to call more than once per subscriber.
func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	if ok {
		delete(h.subscribers, sub)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.close()
	metrics.SubscriberDisconnected()
	log.Info().
		Str("subscriber", sub.id).
		Int("total", count).
		Msg("Alert stream subscriber disconnected")
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast marshals the event once and offers it to every subscriber.
// Subscribers whose queue is full or closed are removed before the lock
// is released, so a stalled client never blocks the pipeline.
func (h *Hub) Broadcast(eventType string, data any) {
	frame, err := json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to marshal alert event")
		return
	}

	var dropped []*Subscriber

	h.mu.Lock()
	for sub := range h.subscribers {
		if !sub.enqueue(frame) {
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		delete(h.subscribers, sub)
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		sub.close()
		metrics.SubscriberDisconnected()
		log.Warn().
			Str("subscriber", sub.id).
			Str("type", eventType).
			Msg("Dropped slow alert stream subscriber")
	}

	metrics.RecordBroadcast(eventType)
	log.Debug().Str("type", eventType).Msg("Broadcast alert event")
}

// readPump consumes frames from the subscriber. Inbound frames are echoed
// back when they carry valid JSON; anything else gets an error frame.
func (h *Hub) readPump(sub *Subscriber) {
	defer func() {
		h.remove(sub)
		sub.conn.Close()
	}()

	sub.conn.SetReadLimit(maxFrameBytes)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("subscriber", sub.id).Msg("Alert stream read error")
			}
			return
		}
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))

		var payload any
		if err := json.Unmarshal(frame, &payload); err != nil {
			reply, _ := json.Marshal(errorFrame{Type: eventError, Message: "Invalid JSON format"})
			sub.enqueue(reply)
			continue
		}

		reply, err := json.Marshal(Event{
			Type:      eventEcho,
			Data:      payload,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			continue
		}
		sub.enqueue(reply)
	}
}

// writePump serialises all writes to the connection, draining the outbound
// queue and keeping the peer alive with periodic pings.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
