// Package thresholds grades telemetry readings against the compiled-in
// environmental bands. The evaluator is pure: no I/O, no clock, no retry.
package thresholds

import (
	"sort"
	"time"

	"github.com/deepseaguard/insight-engine/internal/config"
	"github.com/deepseaguard/insight-engine/internal/models"
)

// Limits echoes the configured bands into a violation for downstream
// consumers, warning and critical as [min, max] pairs.
type Limits struct {
	Warning  [2]float64 `json:"warning"`
	Critical [2]float64 `json:"critical"`
}

// Violation is one parameter outside its band.
type Violation struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Level     string  `json:"level"`
	Limits    Limits  `json:"limits"`
}

// Report is emitted when at least one reading violates a band. It doubles
// as the environmental alert payload and broadcast body.
type Report struct {
	Timestamp  time.Time   `json:"timestamp"`
	VehicleID  string      `json:"auv_id"`
	Violations []Violation `json:"alerts"`
}

// Evaluator checks records against one immutable threshold table.
type Evaluator struct {
	table  config.Thresholds
	params []string
}

// NewEvaluator builds an evaluator over the given table. Parameters are
// evaluated in sorted order so reports and messages are deterministic.
func NewEvaluator(table config.Thresholds) *Evaluator {
	params := make([]string, 0, len(table))
	for param := range table {
		params = append(params, param)
	}
	sort.Strings(params)
	return &Evaluator{table: table, params: params}
}

// Check grades every present parameter independently: the critical band is
// tested first, then the warning band. Absent readings are skipped. Returns
// nil when nothing violates.
func (e *Evaluator) Check(rec models.TelemetryRecord, at time.Time) *Report {
	var violations []Violation
	for _, param := range e.params {
		value := readingFor(rec, param)
		if value == nil {
			continue
		}
		bands := e.table[param]

		var level string
		switch {
		case !bands.Critical.Contains(*value):
			level = string(models.SeverityCritical)
		case !bands.Warning.Contains(*value):
			level = string(models.SeverityWarning)
		default:
			continue
		}

		violations = append(violations, Violation{
			Parameter: param,
			Value:     *value,
			Level:     level,
			Limits: Limits{
				Warning:  [2]float64{bands.Warning.Min, bands.Warning.Max},
				Critical: [2]float64{bands.Critical.Min, bands.Critical.Max},
			},
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return &Report{Timestamp: at.UTC(), VehicleID: rec.VehicleID, Violations: violations}
}

// readingFor maps a threshold parameter name to the record field carrying it.
func readingFor(rec models.TelemetryRecord, param string) *float64 {
	switch param {
	case "temperature":
		return rec.TemperatureC
	case "turbidity":
		return rec.Turbidity
	}
	return nil
}

// Map flattens the report into the open payload map stored with the alert,
// optionally stamping the telemetry row id.
func (r *Report) Map(telemetryID *int64) map[string]any {
	alerts := make([]any, 0, len(r.Violations))
	for _, v := range r.Violations {
		alerts = append(alerts, map[string]any{
			"parameter": v.Parameter,
			"value":     v.Value,
			"level":     v.Level,
			"limits": map[string]any{
				"warning":  []float64{v.Limits.Warning[0], v.Limits.Warning[1]},
				"critical": []float64{v.Limits.Critical[0], v.Limits.Critical[1]},
			},
		})
	}
	out := map[string]any{
		"timestamp": r.Timestamp.Format(time.RFC3339Nano),
		"auv_id":    r.VehicleID,
		"alerts":    alerts,
	}
	if telemetryID != nil {
		out["telemetry_id"] = *telemetryID
	}
	return out
}
