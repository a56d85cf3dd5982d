// Package service contains the dashboard state and filtering logic for hydromap.
package service

import (
	"fmt"
	"math"
	"time"
)

// LayerKind identifies one of the two WMS overlay layers.
type LayerKind string

const (
	LayerReservoir   LayerKind = "reservoir"
	LayerGroundwater LayerKind = "groundwater"
)

// Valid reports whether k names a known layer.
func (k LayerKind) Valid() bool {
	return k == LayerReservoir || k == LayerGroundwater
}

// FeatureProperties is the open property bag returned by a feature-info query.
// The shape depends on the layer; no schema is enforced.
type FeatureProperties map[string]any

// Display returns the value for key formatted for the UI, or "N/A" when the
// key is absent or null.
func (p FeatureProperties) Display(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return "N/A"
	}
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return fmt.Sprintf("%.0f", n)
		}
		return fmt.Sprintf("%g", n)
	case string:
		if n == "" {
			return "N/A"
		}
		return n
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ReservoirPoint is one reading of a reservoir series. LevelM or StorageBCM
// may be NaN when the upstream value was not numeric; such points stay in the
// series and render as gaps.
type ReservoirPoint struct {
	Date       time.Time `json:"date"`
	LevelM     float64   `json:"reservoirLevel"`
	StorageBCM float64   `json:"storageValue"`
}

// GroundwaterPoint is one water-level reading, in meters below ground level.
type GroundwaterPoint struct {
	Date   time.Time `json:"date"`
	DepthM float64   `json:"waterLevel"`
}

// DateRange is an inclusive [From, To] calendar-date window. A zero bound
// means unbounded on that side.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether d falls inside the range. Comparison is by
// calendar date, so a point exactly on a boundary is included regardless
// of time of day.
func (r DateRange) Contains(d time.Time) bool {
	day := DateOnly(d)
	if !r.From.IsZero() && day.Before(DateOnly(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(DateOnly(r.To)) {
		return false
	}
	return true
}

// DateOnly truncates t to midnight UTC, keeping only the calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Selection is the currently selected feature and its fetched series. A new
// selection replaces the previous one entirely; nothing is merged.
type Selection struct {
	Kind        LayerKind
	Properties  FeatureProperties
	Reservoir   []ReservoirPoint
	Groundwater []GroundwaterPoint
	Range       DateRange
	Rev         int64 // bumped per selection; chart frames reload (and reset zoom) on change
}

// SeriesLen returns the number of points in whichever series is populated.
func (s *Selection) SeriesLen() int {
	if s == nil {
		return 0
	}
	if s.Kind == LayerGroundwater {
		return len(s.Groundwater)
	}
	return len(s.Reservoir)
}
