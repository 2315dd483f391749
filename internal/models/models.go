package models

import (
	"encoding/json"
	"time"
)

// AlertKind identifies the class of condition an alert reports.
type AlertKind string

const (
	KindEnvironmental AlertKind = "environmental"
	KindZoneViolation AlertKind = "zone_violation"
	KindDeadVehicle   AlertKind = "dead_auv"
)

// AlertKinds returns the known kinds in sorted order, for validation messages.
func AlertKinds() []string {
	return []string{string(KindDeadVehicle), string(KindEnvironmental), string(KindZoneViolation)}
}

// ValidAlertKind reports whether s names a known alert kind.
func ValidAlertKind(s string) bool {
	switch AlertKind(s) {
	case KindEnvironmental, KindZoneViolation, KindDeadVehicle:
		return true
	}
	return false
}

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertStatus is the lifecycle state of an alert row. Nothing in this
// system resolves alerts; StatusResolved exists for the schema only.
type AlertStatus string

const (
	StatusActive   AlertStatus = "active"
	StatusResolved AlertStatus = "resolved"
)

// LatLon is a WGS84 coordinate pair as it appears on the telemetry wire.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TelemetryRecord is one upstream feed frame. Optional readings are
// pointers so absent and zero stay distinguishable.
type TelemetryRecord struct {
	VehicleID     string   `json:"auv_id"`
	Timestamp     string   `json:"timestamp"`
	ZoneID        *string  `json:"zone_id,omitempty"`
	DepthM        *float64 `json:"depth_m,omitempty"`
	VelocityKnots *float64 `json:"velocity_knots,omitempty"`
	TemperatureC  *float64 `json:"temperature_c,omitempty"`
	Turbidity     *float64 `json:"turbidity,omitempty"`
	Location      *LatLon  `json:"location,omitempty"`
	LocationWKT   *string  `json:"location_wkt,omitempty"`

	// Raw holds the frame exactly as received, persisted alongside the
	// parsed columns. Populated by the upstream client; nil means the
	// record was built locally and the parsed form is stored instead.
	Raw json.RawMessage `json:"-"`
}

// timestamp layouts accepted from the feed, tried in order. Frames without
// a zone offset are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParsedTimestamp normalises the record's timestamp to a tz-aware value.
func (r TelemetryRecord) ParsedTimestamp() (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		if ts, err = time.Parse(layout, r.Timestamp); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, err
}

// RawJSON returns the bytes to persist in the raw column.
func (r TelemetryRecord) RawJSON() json.RawMessage {
	if len(r.Raw) > 0 {
		return r.Raw
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

// Alert is one alert row as the insights listing returns it.
type Alert struct {
	ID        int64       `json:"-"`
	VehicleID string      `json:"auv_id"`
	Kind      AlertKind   `json:"type"`
	Severity  Severity    `json:"severity"`
	Status    AlertStatus `json:"status"`
	Message   string      `json:"message"`
	StartedAt time.Time   `json:"started_at"`
}

// AlertDraft is the store-boundary form of an alert to create. Payload is
// the open map persisted as JSONB; builders fill it from the typed payload
// variants in payloads.go.
type AlertDraft struct {
	VehicleID string
	Kind      AlertKind
	Severity  Severity
	Message   string
	Payload   map[string]any
}

// TelemetryRow is a persisted telemetry point read back for rollups.
type TelemetryRow struct {
	ID            int64
	VehicleID     string
	Timestamp     time.Time
	TemperatureC  *float64
	DepthM        *float64
	VelocityKnots *float64
	LocationWKT   *string
}

// VehicleStatus is the last-seen bookkeeping row for one vehicle.
type VehicleStatus struct {
	VehicleID string
	LastSeen  time.Time
}

// AlertStats aggregates alert counts for one trailing window.
type AlertStats struct {
	TotalAlerts    int64
	AlertsInWindow int64
	LatestAlert    *time.Time
	ByKind         map[string]int64
}
