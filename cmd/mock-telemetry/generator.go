package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/deepseaguard/insight-engine/internal/models"
)

// Scenario mix for the synthetic feed: 30% clean frames, the rest split
// across threshold excursions so every alert path gets exercised.
var scenarios = []struct {
	name   string
	weight float64
}{
	{"normal", 0.3},
	{"temp_warning", 0.2},
	{"temp_critical", 0.1},
	{"turbidity_warning", 0.3},
	{"turbidity_critical", 0.1},
}

type generator struct {
	r *rand.Rand
}

func newGenerator(seed int64) *generator {
	return &generator{r: rand.New(rand.NewSource(seed))}
}

func (g *generator) pickScenario() string {
	x := g.r.Float64()
	for _, s := range scenarios {
		if x < s.weight {
			return s.name
		}
		x -= s.weight
	}
	return scenarios[len(scenarios)-1].name
}

// temperatureFor places the reading inside, just outside the warning band,
// or outside the critical band, depending on the scenario.
func (g *generator) temperatureFor(scenario string) float64 {
	switch scenario {
	case "temp_warning":
		if g.r.Intn(2) == 0 {
			return g.uniform(1.0, 1.4)
		}
		return g.uniform(2.6, 3.0)
	case "temp_critical":
		if g.r.Intn(2) == 0 {
			return g.uniform(0.5, 0.9)
		}
		return g.uniform(3.1, 3.5)
	default:
		return g.uniform(1.8, 2.4)
	}
}

func (g *generator) turbidityFor(scenario string) float64 {
	switch scenario {
	case "turbidity_warning":
		if g.r.Intn(2) == 0 {
			return g.uniform(0.01, 0.04)
		}
		return g.uniform(0.26, 0.29)
	case "turbidity_critical":
		if g.r.Intn(2) == 0 {
			return g.uniform(-0.1, -0.01)
		}
		return g.uniform(0.31, 0.4)
	default:
		return g.uniform(0.1, 0.2)
	}
}

// frame builds one telemetry record on the live wire shape: a vehicle
// somewhere over the survey area, assigned to a zone it should stay in.
func (g *generator) frame(now time.Time) models.TelemetryRecord {
	scenario := g.pickScenario()
	return models.TelemetryRecord{
		VehicleID: fmt.Sprintf("AUV-%d", 1+g.r.Intn(9)),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Location: &models.LatLon{
			Lat: g.uniform(-9.0, -8.0),
			Lon: g.uniform(-147.0, -146.0),
		},
		DepthM:        g.ptr(g.uniform(4000, 4500)),
		ZoneID:        g.strptr(fmt.Sprintf("ISA-ZONE-%d", 1+g.r.Intn(10))),
		VelocityKnots: g.ptr(g.uniform(1.5, 3.5)),
		TemperatureC:  g.ptr(g.temperatureFor(scenario)),
		Turbidity:     g.ptr(g.turbidityFor(scenario)),
	}
}

func (g *generator) uniform(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

func (g *generator) ptr(v float64) *float64 { return &v }

func (g *generator) strptr(s string) *string { return &s }
