package thresholds

import (
	"testing"
	"time"

	"github.com/deepseaguard/insight-engine/internal/config"
	"github.com/deepseaguard/insight-engine/internal/models"
)

func fp(v float64) *float64 { return &v }

func record(temp, turb *float64) models.TelemetryRecord {
	return models.TelemetryRecord{
		VehicleID:    "AUV-1",
		Timestamp:    "2025-01-01T00:00:00Z",
		TemperatureC: temp,
		Turbidity:    turb,
	}
}

func TestCheck(t *testing.T) {
	eval := NewEvaluator(config.DefaultThresholds())
	now := time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC)

	tests := []struct {
		name string
		rec  models.TelemetryRecord
		want []Violation
	}{
		{
			name: "all nominal",
			rec:  record(fp(2.0), fp(0.15)),
			want: nil,
		},
		{
			name: "absent readings skipped",
			rec:  record(nil, nil),
			want: nil,
		},
		{
			name: "temperature warning high",
			rec:  record(fp(2.8), nil),
			want: []Violation{{Parameter: "temperature", Value: 2.8, Level: "warning"}},
		},
		{
			name: "temperature warning low",
			rec:  record(fp(1.2), nil),
			want: []Violation{{Parameter: "temperature", Value: 1.2, Level: "warning"}},
		},
		{
			name: "temperature critical beats warning",
			rec:  record(fp(3.5), nil),
			want: []Violation{{Parameter: "temperature", Value: 3.5, Level: "critical"}},
		},
		{
			name: "temperature critical low",
			rec:  record(fp(0.5), nil),
			want: []Violation{{Parameter: "temperature", Value: 0.5, Level: "critical"}},
		},
		{
			name: "band bounds are inclusive",
			rec:  record(fp(2.5), fp(0.25)),
			want: nil,
		},
		{
			name: "turbidity warning",
			rec:  record(nil, fp(0.28)),
			want: []Violation{{Parameter: "turbidity", Value: 0.28, Level: "warning"}},
		},
		{
			name: "turbidity critical",
			rec:  record(nil, fp(0.35)),
			want: []Violation{{Parameter: "turbidity", Value: 0.35, Level: "critical"}},
		},
		{
			name: "both parameters independently",
			rec:  record(fp(3.5), fp(0.28)),
			want: []Violation{
				{Parameter: "temperature", Value: 3.5, Level: "critical"},
				{Parameter: "turbidity", Value: 0.28, Level: "warning"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := eval.Check(tt.rec, now)
			if tt.want == nil {
				if report != nil {
					t.Fatalf("expected no report, got %+v", report)
				}
				return
			}
			if report == nil {
				t.Fatal("expected a report, got nil")
			}
			if report.VehicleID != "AUV-1" {
				t.Errorf("report vehicle = %q", report.VehicleID)
			}
			if !report.Timestamp.Equal(now) {
				t.Errorf("report timestamp = %v, want %v", report.Timestamp, now)
			}
			if len(report.Violations) != len(tt.want) {
				t.Fatalf("got %d violations, want %d: %+v", len(report.Violations), len(tt.want), report.Violations)
			}
			for i, want := range tt.want {
				got := report.Violations[i]
				if got.Parameter != want.Parameter || got.Value != want.Value || got.Level != want.Level {
					t.Errorf("violation[%d] = %+v, want %+v", i, got, want)
				}
			}
		})
	}
}

func TestCheckIndependence(t *testing.T) {
	// Adding a second violating parameter must not drop the first.
	eval := NewEvaluator(config.DefaultThresholds())
	now := time.Now()

	solo := eval.Check(record(fp(3.5), nil), now)
	if solo == nil || len(solo.Violations) != 1 {
		t.Fatalf("baseline report wrong: %+v", solo)
	}

	both := eval.Check(record(fp(3.5), fp(0.35)), now)
	if both == nil || len(both.Violations) != 2 {
		t.Fatalf("combined report wrong: %+v", both)
	}
	found := false
	for _, v := range both.Violations {
		if v.Parameter == solo.Violations[0].Parameter && v.Level == solo.Violations[0].Level {
			found = true
		}
	}
	if !found {
		t.Errorf("temperature violation lost when turbidity joined: %+v", both.Violations)
	}
}

func TestCheckEchoesLimits(t *testing.T) {
	eval := NewEvaluator(config.DefaultThresholds())
	report := eval.Check(record(fp(3.5), nil), time.Now())
	if report == nil {
		t.Fatal("expected report")
	}
	limits := report.Violations[0].Limits
	if limits.Warning != [2]float64{1.5, 2.5} {
		t.Errorf("warning limits = %v", limits.Warning)
	}
	if limits.Critical != [2]float64{1.0, 3.0} {
		t.Errorf("critical limits = %v", limits.Critical)
	}
}

func TestReportMap(t *testing.T) {
	eval := NewEvaluator(config.DefaultThresholds())
	report := eval.Check(record(fp(3.5), nil), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if report == nil {
		t.Fatal("expected report")
	}

	id := int64(7)
	m := report.Map(&id)
	if m["auv_id"] != "AUV-1" {
		t.Errorf("payload auv_id = %v", m["auv_id"])
	}
	if m["telemetry_id"] != int64(7) {
		t.Errorf("payload telemetry_id = %v", m["telemetry_id"])
	}
	alerts, ok := m["alerts"].([]any)
	if !ok || len(alerts) != 1 {
		t.Fatalf("payload alerts = %v", m["alerts"])
	}

	m = report.Map(nil)
	if _, ok := m["telemetry_id"]; ok {
		t.Error("telemetry_id present without a persisted point")
	}
}
