// Package alerting is the single creation path for alerts. Every kind goes
// through one store operation that enforces active-duplicate suppression:
// at most one active alert per (vehicle, kind).
package alerting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/metrics"
	"github.com/deepseaguard/insight-engine/internal/models"
	"github.com/deepseaguard/insight-engine/internal/thresholds"
)

// AlertStore is the slice of the store the writer needs.
type AlertStore interface {
	CreateAlert(ctx context.Context, draft models.AlertDraft) (alertID int64, deduped bool, err error)
}

// Writer creates alerts through the store.
type Writer struct {
	store AlertStore
}

// NewWriter returns a writer over the given store.
func NewWriter(store AlertStore) *Writer {
	return &Writer{store: store}
}

// Create persists a draft. When an active alert already exists for the
// draft's (vehicle, kind), the existing id is returned with deduped=true
// and nothing is written.
func (w *Writer) Create(ctx context.Context, draft models.AlertDraft) (int64, bool, error) {
	id, deduped, err := w.store.CreateAlert(ctx, draft)
	if err != nil {
		return 0, false, fmt.Errorf("creating %s alert for %s: %w", draft.Kind, draft.VehicleID, err)
	}

	metrics.RecordAlert(string(draft.Kind), deduped)
	if deduped {
		log.Debug().
			Str("auv_id", draft.VehicleID).
			Str("kind", string(draft.Kind)).
			Int64("alert_id", id).
			Msg("Active alert already present, suppressed duplicate")
	} else {
		log.Info().
			Str("auv_id", draft.VehicleID).
			Str("kind", string(draft.Kind)).
			Str("severity", string(draft.Severity)).
			Int64("alert_id", id).
			Msg("Alert created")
	}
	return id, deduped, nil
}

// DeriveSeverity grades an environmental report: critical if any violation
// is critical, else warning if any is warning, else info.
func DeriveSeverity(violations []thresholds.Violation) models.Severity {
	severity := models.SeverityInfo
	for _, v := range violations {
		switch v.Level {
		case string(models.SeverityCritical):
			return models.SeverityCritical
		case string(models.SeverityWarning):
			severity = models.SeverityWarning
		}
	}
	return severity
}

// EnvironmentalDraft shapes a threshold report into an alert draft. The
// telemetry id is carried into the payload when the point was persisted.
func EnvironmentalDraft(report *thresholds.Report, telemetryID *int64) models.AlertDraft {
	return models.AlertDraft{
		VehicleID: report.VehicleID,
		Kind:      models.KindEnvironmental,
		Severity:  DeriveSeverity(report.Violations),
		Message:   environmentalMessage(report.Violations),
		Payload:   report.Map(telemetryID),
	}
}

// ZoneViolationDraft shapes a geofence breach into an alert draft.
func ZoneViolationDraft(vehicleID, zoneID string, telemetryID int64) models.AlertDraft {
	return models.AlertDraft{
		VehicleID: vehicleID,
		Kind:      models.KindZoneViolation,
		Severity:  models.SeverityCritical,
		Message:   fmt.Sprintf("AUV %s outside allowed zone %s", vehicleID, zoneID),
		Payload:   models.NewZoneViolationPayload(zoneID, telemetryID).Map(),
	}
}

// DeadVehicleDraft shapes an overdue vehicle into an alert draft.
func DeadVehicleDraft(vehicleID string, lastSeen time.Time, thresholdSeconds int) models.AlertDraft {
	return models.AlertDraft{
		VehicleID: vehicleID,
		Kind:      models.KindDeadVehicle,
		Severity:  models.SeverityCritical,
		Message:   fmt.Sprintf("AUV %s silent beyond %ds", vehicleID, thresholdSeconds),
		Payload:   models.DeadVehiclePayload{LastSeen: lastSeen, ThresholdSeconds: thresholdSeconds}.Map(),
	}
}

func environmentalMessage(violations []thresholds.Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Parameter+"="+strconv.FormatFloat(v.Value, 'f', -1, 64)+"("+v.Level+")")
	}
	return strings.Join(parts, ", ")
}
