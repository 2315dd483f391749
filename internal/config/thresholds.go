package config

// Band is an inclusive [Min, Max] range a reading is expected to stay in.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// ParameterThresholds holds the warning and critical bands for one
// telemetry parameter. The critical band is wider; readings escaping it are
// graded critical before the warning band is consulted.
type ParameterThresholds struct {
	Warning  Band
	Critical Band
}

// Thresholds maps telemetry parameter names to their bands. Immutable after
// boot; evaluators receive it by value and never mutate it.
type Thresholds map[string]ParameterThresholds

// DefaultThresholds returns the compiled-in environmental limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		"temperature": {
			Warning:  Band{Min: 1.5, Max: 2.5},
			Critical: Band{Min: 1.0, Max: 3.0},
		},
		"turbidity": {
			Warning:  Band{Min: 0.05, Max: 0.25},
			Critical: Band{Min: 0.0, Max: 0.3},
		},
	}
}
