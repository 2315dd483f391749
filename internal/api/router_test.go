package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepseaguard/insight-engine/internal/insights"
	"github.com/deepseaguard/insight-engine/internal/models"
	"github.com/deepseaguard/insight-engine/internal/store"
	"github.com/deepseaguard/insight-engine/internal/websocket"
)

type stubStore struct {
	alerts    []models.Alert
	alertsErr error
}

func (s *stubStore) ListAlerts(context.Context, store.AlertFilter, int) ([]models.Alert, error) {
	return s.alerts, s.alertsErr
}

func (s *stubStore) TelemetryWindow(context.Context, string, time.Time, int) ([]models.TelemetryRow, error) {
	return nil, nil
}

func (s *stubStore) AlertStats(context.Context, store.AlertFilter, time.Time) (models.AlertStats, error) {
	return models.AlertStats{}, nil
}

func newTestServer(t *testing.T, st *stubStore) (*httptest.Server, *websocket.Hub) {
	t.Helper()
	hub := websocket.NewHub(nil)
	srv := httptest.NewServer(NewRouter(insights.NewService(st), hub))
	t.Cleanup(srv.Close)
	return srv, hub
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded), "body: %s", body)
	return resp.StatusCode, decoded
}

func TestRootWelcome(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	status, body := getJSON(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome to DeepSeaGuard Insight Engine", body["message"])
}

func TestRootRejectsUnknownPath(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRootRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	// Requests without an id get one assigned.
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	status, body := getJSON(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestInsightsListing(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{alerts: []models.Alert{{
		VehicleID: "AUV-1",
		Kind:      models.KindEnvironmental,
		Severity:  models.SeverityWarning,
		Status:    models.StatusActive,
		Message:   "turbidity=0.28(warning)",
		StartedAt: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}}})

	status, body := getJSON(t, srv.URL+"/insights?auv_id=AUV-1")
	require.Equal(t, http.StatusOK, status)

	alerts, ok := body["alerts"].([]any)
	require.True(t, ok, "alerts should be an array: %v", body)
	require.Len(t, alerts, 1)

	first := alerts[0].(map[string]any)
	assert.Equal(t, "AUV-1", first["auv_id"])
	assert.Equal(t, "environmental", first["type"])
	assert.Equal(t, "warning", first["severity"])
	assert.NotContains(t, body, "summaries")
}

func TestInsightsRejectsUnknownKind(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	status, body := getJSON(t, srv.URL+"/insights?type=bogus")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid type. Allowed: dead_auv, environmental, zone_violation", body["error"])
}

func TestInsightsRejectsUnknownSummaryMode(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	status, body := getJSON(t, srv.URL+"/insights?summary_modes=sideways")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid summary_modes [sideways]. Allowed: stats, timeseries", body["error"])
}

func TestInsightsStoreFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{alertsErr: errors.New("connection refused")})

	status, body := getJSON(t, srv.URL+"/insights")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body["error"])
}

func TestInsightsRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	resp, err := http.Post(srv.URL+"/insights", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAlertStreamThroughRouter(t *testing.T) {
	srv, hub := newTestServer(t, &stubStore{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alert"
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 },
		3*time.Second, 10*time.Millisecond)

	hub.Broadcast(websocket.EventEnvironmental, map[string]string{"auv_id": "AUV-1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, websocket.EventEnvironmental, frame.Type)
	assert.Equal(t, "AUV-1", frame.Data["auv_id"])
}
