// Package ingest drives the per-record pipeline: persist the point, grade
// it against the environmental thresholds, run the zone decision, and push
// the resulting events to subscribers.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/alerting"
	"github.com/deepseaguard/insight-engine/internal/metrics"
	"github.com/deepseaguard/insight-engine/internal/models"
	"github.com/deepseaguard/insight-engine/internal/store"
	"github.com/deepseaguard/insight-engine/internal/thresholds"
	"github.com/deepseaguard/insight-engine/internal/websocket"
)

// Store is the slice of the spatial store the ingestor writes through.
type Store interface {
	InsertTelemetry(ctx context.Context, in store.TelemetryInsert) (int64, error)
}

// AlertWriter persists alert drafts with duplicate suppression.
type AlertWriter interface {
	Create(ctx context.Context, draft models.AlertDraft) (alertID int64, deduped bool, err error)
}

// ZoneEvaluator runs the geofence decision for a persisted point.
type ZoneEvaluator interface {
	Evaluate(ctx context.Context, telemetryID int64) (*models.ZoneViolationPayload, error)
}

// Broadcaster pushes one event to every subscriber.
type Broadcaster interface {
	Broadcast(eventType string, data any)
}

// Ingestor processes one telemetry record at a time. The upstream client
// serialises calls, so records from one feed connection run in feed order.
type Ingestor struct {
	store      Store
	thresholds *thresholds.Evaluator
	alerts     AlertWriter
	zones      ZoneEvaluator
	hub        Broadcaster

	now func() time.Time
}

// NewIngestor wires the pipeline stages together.
func NewIngestor(s Store, eval *thresholds.Evaluator, alerts AlertWriter, zones ZoneEvaluator, hub Broadcaster) *Ingestor {
	return &Ingestor{
		store:      s,
		thresholds: eval,
		alerts:     alerts,
		zones:      zones,
		hub:        hub,
		now:        time.Now,
	}
}

// Process runs one record through the pipeline. The telemetry write is
// durable before either evaluator runs; an evaluator failure never takes
// the point with it. A failed write still grades thresholds (the reading
// is in hand) but skips the zone phase, which needs the persisted row.
func (i *Ingestor) Process(ctx context.Context, rec models.TelemetryRecord) error {
	if rec.VehicleID == "" {
		metrics.RecordIngestFailure()
		return fmt.Errorf("telemetry record missing auv_id")
	}
	ts, err := rec.ParsedTimestamp()
	if err != nil {
		metrics.RecordIngestFailure()
		return fmt.Errorf("telemetry record for %s has unusable timestamp %q: %w", rec.VehicleID, rec.Timestamp, err)
	}

	var telemetryID *int64
	if id, err := i.store.InsertTelemetry(ctx, insertFrom(rec, ts)); err != nil {
		metrics.RecordIngestFailure()
		log.Error().Err(err).Str("auv_id", rec.VehicleID).Msg("Telemetry write failed")
	} else {
		telemetryID = &id
		metrics.RecordTelemetry()
		log.Debug().
			Str("auv_id", rec.VehicleID).
			Int64("telemetry_id", id).
			Time("timestamp", ts).
			Msg("Telemetry point persisted")
	}

	// Environmental phase. Duplicate suppression and write failures never
	// hold the event back; subscribers see every violating reading.
	if report := i.thresholds.Check(rec, i.now()); report != nil {
		if _, _, err := i.alerts.Create(ctx, alerting.EnvironmentalDraft(report, telemetryID)); err != nil {
			log.Error().Err(err).Str("auv_id", rec.VehicleID).Msg("Environmental alert write failed")
		}
		i.hub.Broadcast(websocket.EventEnvironmental, report)
	}

	// Zone phase needs the persisted row.
	if telemetryID == nil {
		return nil
	}
	violation, err := i.zones.Evaluate(ctx, *telemetryID)
	if err != nil {
		log.Error().Err(err).
			Str("auv_id", rec.VehicleID).
			Int64("telemetry_id", *telemetryID).
			Msg("Zone evaluation failed")
		return nil
	}
	if violation != nil {
		i.hub.Broadcast(websocket.EventZoneViolation, violation)
	}
	return nil
}

func insertFrom(rec models.TelemetryRecord, ts time.Time) store.TelemetryInsert {
	return store.TelemetryInsert{
		VehicleID:     rec.VehicleID,
		Timestamp:     ts,
		ZoneID:        rec.ZoneID,
		DepthM:        rec.DepthM,
		VelocityKnots: rec.VelocityKnots,
		TemperatureC:  rec.TemperatureC,
		Turbidity:     rec.Turbidity,
		LocationWKT:   locationWKT(rec),
		Raw:           rec.RawJSON(),
	}
}

// locationWKT prefers a WKT literal carried on the frame, falling back to
// the lat/lon pair.
func locationWKT(rec models.TelemetryRecord) *string {
	if rec.LocationWKT != nil && *rec.LocationWKT != "" {
		return rec.LocationWKT
	}
	if rec.Location == nil {
		return nil
	}
	wkt := models.PointWKT(rec.Location.Lat, rec.Location.Lon)
	return &wkt
}
