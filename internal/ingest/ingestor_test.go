package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepseaguard/insight-engine/internal/config"
	"github.com/deepseaguard/insight-engine/internal/models"
	"github.com/deepseaguard/insight-engine/internal/store"
	"github.com/deepseaguard/insight-engine/internal/thresholds"
	"github.com/deepseaguard/insight-engine/internal/websocket"
)

type fakeStore struct {
	inserts []store.TelemetryInsert
	err     error
	nextID  int64
}

func (f *fakeStore) InsertTelemetry(_ context.Context, in store.TelemetryInsert) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.inserts = append(f.inserts, in)
	f.nextID++
	return f.nextID, nil
}

type fakeWriter struct {
	drafts  []models.AlertDraft
	deduped bool
	err     error
}

func (f *fakeWriter) Create(_ context.Context, draft models.AlertDraft) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	f.drafts = append(f.drafts, draft)
	return 7, f.deduped, nil
}

type fakeZones struct {
	calls   []int64
	payload *models.ZoneViolationPayload
	err     error
}

func (f *fakeZones) Evaluate(_ context.Context, telemetryID int64) (*models.ZoneViolationPayload, error) {
	f.calls = append(f.calls, telemetryID)
	return f.payload, f.err
}

type broadcastEvent struct {
	kind string
	data any
}

type fakeHub struct {
	events []broadcastEvent
}

func (f *fakeHub) Broadcast(eventType string, data any) {
	f.events = append(f.events, broadcastEvent{kind: eventType, data: data})
}

func f64(v float64) *float64 { return &v }

func strptr(s string) *string { return &s }

func newTestIngestor(s *fakeStore, w *fakeWriter, z *fakeZones, h *fakeHub) *Ingestor {
	ing := NewIngestor(s, thresholds.NewEvaluator(config.DefaultThresholds()), w, z, h)
	ing.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return ing
}

func TestProcessPersistsQuietRecord(t *testing.T) {
	st := &fakeStore{}
	wr := &fakeWriter{}
	zn := &fakeZones{}
	hub := &fakeHub{}
	ing := newTestIngestor(st, wr, zn, hub)

	rec := models.TelemetryRecord{
		VehicleID:    "AUV-1",
		Timestamp:    "2025-06-01T11:59:50+00:00",
		ZoneID:       strptr("ISA-ZONE-3"),
		Location:     &models.LatLon{Lat: 10.5, Lon: -125.5},
		TemperatureC: f64(2.0),
		Turbidity:    f64(0.15),
	}
	require.NoError(t, ing.Process(context.Background(), rec))

	require.Len(t, st.inserts, 1)
	in := st.inserts[0]
	assert.Equal(t, "AUV-1", in.VehicleID)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 59, 50, 0, time.UTC), in.Timestamp)
	require.NotNil(t, in.LocationWKT)
	assert.Equal(t, "POINT(-125.5 10.5)", *in.LocationWKT)
	assert.NotEmpty(t, in.Raw)

	assert.Empty(t, wr.drafts, "quiet record must not create alerts")
	assert.Empty(t, hub.events, "quiet record must not broadcast")
	assert.Equal(t, []int64{1}, zn.calls, "zone phase runs for every persisted point")
}

func TestProcessRejectsUnusableRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  models.TelemetryRecord
	}{
		{"missing auv id", models.TelemetryRecord{Timestamp: "2025-06-01T12:00:00Z"}},
		{"unparseable timestamp", models.TelemetryRecord{VehicleID: "AUV-1", Timestamp: "yesterday"}},
		{"empty timestamp", models.TelemetryRecord{VehicleID: "AUV-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStore{}
			ing := newTestIngestor(st, &fakeWriter{}, &fakeZones{}, &fakeHub{})

			err := ing.Process(context.Background(), tt.rec)
			require.Error(t, err)
			assert.Empty(t, st.inserts, "rejected record must not be written")
		})
	}
}

func TestProcessEnvironmentalThenZoneBroadcast(t *testing.T) {
	st := &fakeStore{}
	wr := &fakeWriter{}
	zn := &fakeZones{}
	hub := &fakeHub{}
	payload := models.NewZoneViolationPayload("ISA-ZONE-3", 1)
	zn.payload = &payload
	ing := newTestIngestor(st, wr, zn, hub)

	rec := models.TelemetryRecord{
		VehicleID:    "AUV-1",
		Timestamp:    "2025-06-01T12:00:00Z",
		ZoneID:       strptr("ISA-ZONE-3"),
		Location:     &models.LatLon{Lat: 15.0, Lon: -130.0},
		TemperatureC: f64(3.5),
	}
	require.NoError(t, ing.Process(context.Background(), rec))

	require.Len(t, wr.drafts, 1)
	draft := wr.drafts[0]
	assert.Equal(t, models.KindEnvironmental, draft.Kind)
	assert.Equal(t, models.SeverityCritical, draft.Severity)
	assert.Equal(t, "temperature=3.5(critical)", draft.Message)
	assert.Equal(t, int64(1), draft.Payload["telemetry_id"])

	require.Len(t, hub.events, 2)
	assert.Equal(t, websocket.EventEnvironmental, hub.events[0].kind)
	assert.Equal(t, websocket.EventZoneViolation, hub.events[1].kind)

	report, ok := hub.events[0].data.(*thresholds.Report)
	require.True(t, ok, "environmental event carries the threshold report")
	assert.Equal(t, "AUV-1", report.VehicleID)

	violation, ok := hub.events[1].data.(*models.ZoneViolationPayload)
	require.True(t, ok, "zone event carries the violation summary")
	assert.Equal(t, "ISA-ZONE-3", violation.ZoneID)
}

func TestProcessBroadcastsSuppressedDuplicate(t *testing.T) {
	st := &fakeStore{}
	wr := &fakeWriter{deduped: true}
	hub := &fakeHub{}
	ing := newTestIngestor(st, wr, &fakeZones{}, hub)

	rec := models.TelemetryRecord{
		VehicleID: "AUV-1",
		Timestamp: "2025-06-01T12:00:00Z",
		Turbidity: f64(0.35),
	}
	require.NoError(t, ing.Process(context.Background(), rec))

	require.Len(t, hub.events, 1)
	assert.Equal(t, websocket.EventEnvironmental, hub.events[0].kind)
}

func TestProcessBroadcastsDespiteAlertWriteFailure(t *testing.T) {
	st := &fakeStore{}
	wr := &fakeWriter{err: fmt.Errorf("pool exhausted")}
	hub := &fakeHub{}
	ing := newTestIngestor(st, wr, &fakeZones{}, hub)

	rec := models.TelemetryRecord{
		VehicleID:    "AUV-1",
		Timestamp:    "2025-06-01T12:00:00Z",
		TemperatureC: f64(0.5),
	}
	require.NoError(t, ing.Process(context.Background(), rec))

	require.Len(t, hub.events, 1)
	assert.Equal(t, websocket.EventEnvironmental, hub.events[0].kind)
}

func TestProcessInsertFailureSkipsZonePhase(t *testing.T) {
	st := &fakeStore{err: fmt.Errorf("connection refused")}
	wr := &fakeWriter{}
	zn := &fakeZones{}
	hub := &fakeHub{}
	ing := newTestIngestor(st, wr, zn, hub)

	rec := models.TelemetryRecord{
		VehicleID:    "AUV-1",
		Timestamp:    "2025-06-01T12:00:00Z",
		ZoneID:       strptr("ISA-ZONE-3"),
		TemperatureC: f64(3.5),
	}
	require.NoError(t, ing.Process(context.Background(), rec))

	// Thresholds still grade the in-hand reading, without a row reference.
	require.Len(t, wr.drafts, 1)
	_, hasRef := wr.drafts[0].Payload["telemetry_id"]
	assert.False(t, hasRef, "unpersisted point must not claim a telemetry id")

	require.Len(t, hub.events, 1)
	assert.Equal(t, websocket.EventEnvironmental, hub.events[0].kind)
	assert.Empty(t, zn.calls, "zone phase needs the persisted row")
}

func TestProcessZoneEvaluatorFailureIsContained(t *testing.T) {
	st := &fakeStore{}
	zn := &fakeZones{err: fmt.Errorf("geometry query timeout")}
	hub := &fakeHub{}
	ing := newTestIngestor(st, &fakeWriter{}, zn, hub)

	rec := models.TelemetryRecord{
		VehicleID: "AUV-1",
		Timestamp: "2025-06-01T12:00:00Z",
		ZoneID:    strptr("ISA-ZONE-3"),
		Location:  &models.LatLon{Lat: 10.5, Lon: -125.5},
	}
	require.NoError(t, ing.Process(context.Background(), rec))

	require.Len(t, st.inserts, 1, "telemetry write survives the evaluator failure")
	assert.Empty(t, hub.events)
}
