// Package insights answers the alert-history query: a filtered listing
// plus optional on-demand rollups over a trailing window.
package insights

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/deepseaguard/insight-engine/internal/models"
)

const (
	defaultLimit           = 20
	defaultWindowMinutes   = 20
	defaultTimeseriesLimit = 30
)

// summaryModesAllowed are the recognised rollup selectors, sorted.
var summaryModesAllowed = []string{"stats", "timeseries"}

// timeseriesFieldsAllowed are the projectable telemetry fields, in the
// order used when the caller does not narrow them.
var timeseriesFieldsAllowed = []string{"temperature_c", "depth_m", "velocity_knots", "location"}

// ValidationError marks a request the caller must fix; handlers map it to
// HTTP 400 with the message as the body.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Params is one parsed insights request. Out-of-range numbers are clamped
// into their documented bounds, never rejected.
type Params struct {
	VehicleID        string
	Kind             string
	Limit            int
	Summary          bool
	SummaryModes     []string
	WindowMinutes    int
	TimeseriesLimit  int
	TimeseriesFields []string

	// modesExplicit records whether summary_modes appeared in the query,
	// as opposed to the default selection.
	modesExplicit bool
}

// ParseParams reads the query string into Params. Unknown alert kinds and
// unknown summary modes are validation errors; unknown timeseries fields
// are silently dropped.
func ParseParams(q url.Values) (Params, error) {
	p := Params{
		Limit:           defaultLimit,
		SummaryModes:    []string{"timeseries"},
		WindowMinutes:   defaultWindowMinutes,
		TimeseriesLimit: defaultTimeseriesLimit,
	}

	p.VehicleID = q.Get("auv_id")

	p.Kind = q.Get("type")
	if p.Kind != "" && !models.ValidAlertKind(p.Kind) {
		return Params{}, &ValidationError{
			msg: fmt.Sprintf("Invalid type. Allowed: %s", strings.Join(models.AlertKinds(), ", ")),
		}
	}

	p.Limit = intParam(q, "limit", p.Limit)
	p.WindowMinutes = intParam(q, "window_minutes", p.WindowMinutes)
	p.TimeseriesLimit = intParam(q, "timeseries_limit", p.TimeseriesLimit)

	if raw := q.Get("summary"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			p.Summary = v
		}
	}

	if q.Has("summary_modes") {
		p.modesExplicit = true
		modes := splitCSV(q.Get("summary_modes"))
		var invalid []string
		for _, m := range modes {
			if !slices.Contains(summaryModesAllowed, m) {
				invalid = append(invalid, m)
			}
		}
		if len(invalid) > 0 {
			return Params{}, &ValidationError{
				msg: fmt.Sprintf("Invalid summary_modes %v. Allowed: %s", invalid, strings.Join(summaryModesAllowed, ", ")),
			}
		}
		p.SummaryModes = modes
	}

	if parts := splitCSV(q.Get("timeseries_fields")); len(parts) > 0 {
		// An explicit selection sticks even when nothing in it is usable;
		// the projection then carries timestamps only.
		fields := make([]string, 0, len(parts))
		for _, f := range parts {
			if slices.Contains(timeseriesFieldsAllowed, f) && !slices.Contains(fields, f) {
				fields = append(fields, f)
			}
		}
		p.TimeseriesFields = fields
	}

	p.clamp()
	return p, nil
}

// clamp forces the numeric parameters into their documented bounds.
func (p *Params) clamp() {
	p.Limit = clampInt(p.Limit, 1, 100)
	p.WindowMinutes = clampInt(p.WindowMinutes, 1, 1440)
	p.TimeseriesLimit = clampInt(p.TimeseriesLimit, 10, 200)
}

// summariesWanted reports whether the summaries block is assembled at all.
// summary=true opens the gate; naming summary_modes in the query does too,
// since the caller then asked for specific rollups.
func (p Params) summariesWanted() bool {
	return p.Summary || (p.modesExplicit && len(p.SummaryModes) > 0)
}

func (p Params) hasMode(mode string) bool {
	return slices.Contains(p.SummaryModes, mode)
}

// fields returns the projection set for timeseries points: the explicit
// request when given, otherwise every allowed field.
func (p Params) fields() []string {
	if p.TimeseriesFields != nil {
		return p.TimeseriesFields
	}
	return slices.Clone(timeseriesFieldsAllowed)
}

func intParam(q url.Values, key string, fallback int) int {
	raw := q.Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}
