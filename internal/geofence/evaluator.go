// Package geofence decides whether persisted telemetry points sit inside
// their vehicle's assigned zone. Containment itself is computed by the
// spatial store on the sphere at SRID 4326; this package owns the decision
// flow and its side effects.
package geofence

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/alerting"
	"github.com/deepseaguard/insight-engine/internal/metrics"
	"github.com/deepseaguard/insight-engine/internal/models"
	"github.com/deepseaguard/insight-engine/internal/store"
)

// Store is the slice of the spatial store the evaluator needs. Reads run in
// their own session; MarkZoneViolation bundles the state update and the
// alert insert into one write transaction.
type Store interface {
	TelemetryVehicleZone(ctx context.Context, telemetryID int64) (string, *string, error)
	PointInAssignedZone(ctx context.Context, telemetryID int64, zoneID string) (contained, known bool, err error)
	ClearZoneViolation(ctx context.Context, telemetryID int64) error
	MarkZoneViolation(ctx context.Context, telemetryID int64, draft models.AlertDraft) (alertID int64, deduped bool, err error)
}

// Evaluator runs the zone decision for one telemetry point at a time.
type Evaluator struct {
	store Store
}

// NewEvaluator returns an evaluator over the given store.
func NewEvaluator(s Store) *Evaluator {
	return &Evaluator{store: s}
}

// Evaluate checks one persisted point against its assigned zone. No zone,
// no geometry, or an unknown zone id yields no decision and no mutation.
// Inside clears any prior violation state. Outside marks the point and
// creates the alert, returning the violation summary for broadcast.
func (e *Evaluator) Evaluate(ctx context.Context, telemetryID int64) (*models.ZoneViolationPayload, error) {
	vehicleID, zoneID, err := e.store.TelemetryVehicleZone(ctx, telemetryID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Int64("telemetry_id", telemetryID).Msg("Zone check skipped, point not found")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading point for zone check: %w", err)
	}
	if zoneID == nil || *zoneID == "" {
		return nil, nil
	}

	contained, known, err := e.store.PointInAssignedZone(ctx, telemetryID, *zoneID)
	if err != nil {
		return nil, fmt.Errorf("testing containment: %w", err)
	}
	if !known {
		log.Debug().
			Int64("telemetry_id", telemetryID).
			Str("zone_id", *zoneID).
			Msg("Zone check inconclusive, missing zone or geometry")
		return nil, nil
	}

	if contained {
		if err := e.store.ClearZoneViolation(ctx, telemetryID); err != nil {
			return nil, fmt.Errorf("clearing violation state: %w", err)
		}
		return nil, nil
	}

	draft := alerting.ZoneViolationDraft(vehicleID, *zoneID, telemetryID)
	alertID, deduped, err := e.store.MarkZoneViolation(ctx, telemetryID, draft)
	if err != nil {
		return nil, fmt.Errorf("recording zone violation: %w", err)
	}

	metrics.RecordAlert(string(models.KindZoneViolation), deduped)
	log.Info().
		Str("auv_id", vehicleID).
		Str("zone_id", *zoneID).
		Int64("telemetry_id", telemetryID).
		Int64("alert_id", alertID).
		Bool("deduplicated", deduped).
		Msg("Vehicle outside assigned zone")

	payload := models.NewZoneViolationPayload(*zoneID, telemetryID)
	return &payload, nil
}
