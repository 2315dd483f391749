// Package api serves the HTTP surface: liveness endpoints, the insights
// query, and the subscriber stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/insights"
	"github.com/deepseaguard/insight-engine/internal/logging"
	"github.com/deepseaguard/insight-engine/internal/websocket"
)

// Router handles HTTP routing.
type Router struct {
	mux      *http.ServeMux
	insights *insights.Service
	hub      *websocket.Hub
}

// NewRouter creates a new router instance.
func NewRouter(svc *insights.Service, hub *websocket.Hub) http.Handler {
	r := &Router{
		mux:      http.NewServeMux(),
		insights: svc,
		hub:      hub,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/", r.handleRoot)
	r.mux.HandleFunc("/healthz", r.handleHealthz)
	r.mux.HandleFunc("/insights", r.handleInsights)

	// WebSocket endpoint
	r.mux.HandleFunc("/ws/alert", r.handleAlertStream)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	ctx, requestID := logging.WithRequestID(req.Context(), req.Header.Get("X-Request-ID"))
	w.Header().Set("X-Request-ID", requestID)
	r.mux.ServeHTTP(w, req.WithContext(ctx))
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", requestID).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
}

// handleRoot answers the welcome probe. The catch-all pattern also lands
// unknown paths here, so anything but the bare root is a 404.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to DeepSeaGuard Insight Engine"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInsights parses the query, runs it, and returns the assembled
// body. Validation problems are the caller's; everything else is a 500
// with the detail kept in the log.
func (r *Router) handleInsights(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params, err := insights.ParseParams(req.URL.Query())
	if err != nil {
		var verr *insights.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}

	result, err := r.insights.Fetch(req.Context(), params)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Str("path", req.URL.Path).Msg("Insights query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleAlertStream(w http.ResponseWriter, req *http.Request) {
	r.hub.HandleAlertStream(w, req)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response body")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
