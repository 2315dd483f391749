package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/deepseaguard/insight-engine/internal/models"
	"github.com/deepseaguard/insight-engine/internal/store"
)

// Store is the slice of the persistence layer the query needs.
type Store interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter, limit int) ([]models.Alert, error)
	TelemetryWindow(ctx context.Context, vehicleID string, since time.Time, limit int) ([]models.TelemetryRow, error)
	AlertStats(ctx context.Context, filter store.AlertFilter, since time.Time) (models.AlertStats, error)
}

// Result is the full insights response body.
type Result struct {
	Alerts    []models.Alert `json:"alerts"`
	Summaries *Summaries     `json:"summaries,omitempty"`
}

// Summaries groups the optional rollups. TimeseriesError replaces the
// timeseries block when the request cannot be satisfied.
type Summaries struct {
	Timeseries      *Timeseries `json:"timeseries,omitempty"`
	TimeseriesError string      `json:"timeseries_error,omitempty"`
	Stats           *Stats      `json:"stats,omitempty"`
}

// Timeseries is the per-vehicle point projection over the window.
type Timeseries struct {
	VehicleID     string           `json:"auv_id"`
	WindowMinutes int              `json:"window_minutes"`
	Fields        []string         `json:"fields"`
	Points        []map[string]any `json:"points"`
	Count         int              `json:"count"`
}

// Stats is the alert aggregate over the window, honouring the same
// vehicle and kind filters as the listing.
type Stats struct {
	WindowMinutes  int              `json:"window_minutes"`
	TotalAlerts    int64            `json:"total_alerts"`
	AlertsInWindow int64            `json:"alerts_in_window"`
	LatestAlert    *string          `json:"latest_alert_timestamp"`
	AlertsByKind   map[string]int64 `json:"alerts_by_type"`
}

// Service runs insights queries against the store.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(s Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Fetch lists the newest matching alerts and, when the request asks for
// them, attaches the selected rollups. Both rollups share one trailing
// window anchored at now.
func (s *Service) Fetch(ctx context.Context, p Params) (*Result, error) {
	p.clamp()
	filter := store.AlertFilter{VehicleID: p.VehicleID, Kind: models.AlertKind(p.Kind)}

	alerts, err := s.store.ListAlerts(ctx, filter, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	out := &Result{Alerts: alerts}

	if !p.summariesWanted() {
		return out, nil
	}

	summaries := &Summaries{}
	windowStart := s.now().UTC().Add(-time.Duration(p.WindowMinutes) * time.Minute)

	if p.hasMode("timeseries") {
		if p.VehicleID == "" {
			summaries.TimeseriesError = "timeseries summary requires auv_id"
		} else {
			rows, err := s.store.TelemetryWindow(ctx, p.VehicleID, windowStart, p.TimeseriesLimit)
			if err != nil {
				return nil, fmt.Errorf("reading telemetry window for %s: %w", p.VehicleID, err)
			}
			summaries.Timeseries = buildTimeseries(p, rows)
		}
	}

	if p.hasMode("stats") {
		agg, err := s.store.AlertStats(ctx, filter, windowStart)
		if err != nil {
			return nil, fmt.Errorf("aggregating alert stats: %w", err)
		}
		summaries.Stats = buildStats(p.WindowMinutes, agg)
	}

	out.Summaries = summaries
	return out, nil
}

// buildTimeseries projects the rows onto the requested fields. Missing
// readings stay in the point as nulls so consumers see a stable shape.
func buildTimeseries(p Params, rows []models.TelemetryRow) *Timeseries {
	fields := p.fields()
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	points := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		pt := map[string]any{"timestamp": row.Timestamp.UTC().Format(time.RFC3339Nano)}
		if want["temperature_c"] {
			pt["temperature_c"] = row.TemperatureC
		}
		if want["depth_m"] {
			pt["depth_m"] = row.DepthM
		}
		if want["velocity_knots"] {
			pt["velocity_knots"] = row.VelocityKnots
		}
		if want["location"] {
			pt["location"] = pointLocation(row.LocationWKT)
		}
		points = append(points, pt)
	}

	return &Timeseries{
		VehicleID:     p.VehicleID,
		WindowMinutes: p.WindowMinutes,
		Fields:        fields,
		Points:        points,
		Count:         len(points),
	}
}

// pointLocation turns stored WKT into the {lon, lat} wire shape, or nil
// when the point has no usable geometry.
func pointLocation(wkt *string) any {
	if wkt == nil {
		return nil
	}
	ll, ok := models.ParsePointWKT(*wkt)
	if !ok {
		return nil
	}
	return map[string]float64{"lon": ll.Lon, "lat": ll.Lat}
}

func buildStats(windowMinutes int, agg models.AlertStats) *Stats {
	st := &Stats{
		WindowMinutes:  windowMinutes,
		TotalAlerts:    agg.TotalAlerts,
		AlertsInWindow: agg.AlertsInWindow,
		AlertsByKind:   agg.ByKind,
	}
	if st.AlertsByKind == nil {
		st.AlertsByKind = map[string]int64{}
	}
	if agg.LatestAlert != nil {
		s := agg.LatestAlert.UTC().Format(time.RFC3339Nano)
		st.LatestAlert = &s
	}
	return st
}
