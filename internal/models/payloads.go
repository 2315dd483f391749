package models

import "time"

// Alert payloads are typed per kind inside the process and flattened to the
// open JSONB map only when handed to the store. Wire keys follow the alert
// consumers, so they never move when internals are refactored.

// ZoneViolationPayload is attached to zone_violation alerts and broadcast
// as the zone_alert event body.
type ZoneViolationPayload struct {
	Type        string `json:"type"`
	Violation   string `json:"violation"`
	ZoneID      string `json:"zone_id"`
	TelemetryID int64  `json:"telemetry_id"`
}

// NewZoneViolationPayload builds the payload for a point outside its zone.
func NewZoneViolationPayload(zoneID string, telemetryID int64) ZoneViolationPayload {
	return ZoneViolationPayload{
		Type:        string(KindZoneViolation),
		Violation:   "outside",
		ZoneID:      zoneID,
		TelemetryID: telemetryID,
	}
}

// Map flattens the payload for the alert row. The event type tag stays off
// the stored form; it belongs to the broadcast frame only.
func (p ZoneViolationPayload) Map() map[string]any {
	return map[string]any{
		"zone_id":      p.ZoneID,
		"violation":    p.Violation,
		"telemetry_id": p.TelemetryID,
	}
}

// DeadVehiclePayload is attached to dead_auv alerts.
type DeadVehiclePayload struct {
	LastSeen         time.Time
	ThresholdSeconds int
}

// Map flattens the payload for the alert row.
func (p DeadVehiclePayload) Map() map[string]any {
	return map[string]any{
		"last_seen":         p.LastSeen.UTC().Format(time.RFC3339Nano),
		"threshold_seconds": p.ThresholdSeconds,
	}
}

// DeadVehicleEvent is the dead_auv_alert broadcast body emitted by the
// scanner for each newly overdue vehicle.
type DeadVehicleEvent struct {
	Type             string    `json:"type"`
	VehicleID        string    `json:"auv_id"`
	LastSeen         time.Time `json:"last_seen"`
	ThresholdSeconds int       `json:"threshold_seconds"`
}

// NewDeadVehicleEvent builds the broadcast body for one overdue vehicle.
func NewDeadVehicleEvent(vehicleID string, lastSeen time.Time, thresholdSeconds int) DeadVehicleEvent {
	return DeadVehicleEvent{
		Type:             string(KindDeadVehicle),
		VehicleID:        vehicleID,
		LastSeen:         lastSeen.UTC(),
		ThresholdSeconds: thresholdSeconds,
	}
}
