// Package engine implements the real-time proximity and average-zone
// evaluation core: visibility-window diffing, direction-aware throttled
// hazard alerts, and corridor traversal tracking over a stream of
// position samples.
//
// The engine is purely reactive. It owns no timers and no goroutines;
// Ingest and ReloadCatalog are the only mutating entry points and must be
// called from a single goroutine. All time comparisons use the
// caller-supplied sample timestamps, which keeps the whole package
// testable without real clocks.
package engine

import (
	"math"

	"github.com/roadwatch/roadwatch/internal/types"
)

// Options carries the tunable thresholds. Zero values are replaced by the
// corresponding defaults when the engine is built.
type Options struct {
	CameraVisibleRadiusM float64
	AlertDistanceM       float64
	PerHazardThrottleMs  int64
	GlobalThrottleMs     int64
	AheadAngleDeg        float64
	ZoneGapEpsilonM      float64
	ZoneOverrunEpsilonM  float64
	ZoneSpeedSampleCap   int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		CameraVisibleRadiusM: 10000,
		AlertDistanceM:       1000,
		PerHazardThrottleMs:  5000,
		GlobalThrottleMs:     2500,
		AheadAngleDeg:        60,
		ZoneGapEpsilonM:      60,
		ZoneOverrunEpsilonM:  30,
		ZoneSpeedSampleCap:   80,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CameraVisibleRadiusM <= 0 {
		o.CameraVisibleRadiusM = d.CameraVisibleRadiusM
	}
	if o.AlertDistanceM <= 0 {
		o.AlertDistanceM = d.AlertDistanceM
	}
	if o.PerHazardThrottleMs <= 0 {
		o.PerHazardThrottleMs = d.PerHazardThrottleMs
	}
	if o.GlobalThrottleMs <= 0 {
		o.GlobalThrottleMs = d.GlobalThrottleMs
	}
	if o.AheadAngleDeg <= 0 {
		o.AheadAngleDeg = d.AheadAngleDeg
	}
	if o.ZoneGapEpsilonM <= 0 {
		o.ZoneGapEpsilonM = d.ZoneGapEpsilonM
	}
	if o.ZoneOverrunEpsilonM <= 0 {
		o.ZoneOverrunEpsilonM = d.ZoneOverrunEpsilonM
	}
	if o.ZoneSpeedSampleCap <= 0 {
		o.ZoneSpeedSampleCap = d.ZoneSpeedSampleCap
	}
	return o
}

// Engine holds all mutable evaluation state. Single writer; see the
// package comment.
type Engine struct {
	opts    Options
	catalog *Catalog

	lastSample           *types.PositionSample
	lastSpeedKmh         float64
	visible              map[string]struct{}
	perHazardLastAlertMs map[string]int64
	lastGlobalAlertMs    int64
	session              *zoneSession
}

// New creates an engine over the given catalog snapshot.
func New(opts Options, catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = NewCatalog(nil, nil)
	}
	return &Engine{
		opts:                 opts.withDefaults(),
		catalog:              catalog,
		visible:              make(map[string]struct{}),
		perHazardLastAlertMs: make(map[string]int64),
	}
}

// Ingest processes one position sample to completion and returns the
// events it produced, in evaluation order: visibility change, alert,
// zone transitions. It never fails; missing speed or heading trigger the
// documented fallbacks.
func (e *Engine) Ingest(sample types.PositionSample) []types.EngineEvent {
	// Sticky speed fallback: a sample without speed keeps the last known
	// value so downstream consumers don't flicker to zero on noisy GPS.
	speedKmh := e.lastSpeedKmh
	if sample.SpeedKmh != nil && isFinite(*sample.SpeedKmh) {
		speedKmh = *sample.SpeedKmh
		e.lastSpeedKmh = speedKmh
	}

	// Heading: device value if present, otherwise derived from the
	// previous fix, otherwise unknown.
	var headingDeg *float64
	if sample.HeadingDeg != nil && isFinite(*sample.HeadingDeg) {
		headingDeg = sample.HeadingDeg
	} else if e.lastSample != nil {
		derived := BearingDegrees(e.lastSample.Lat, e.lastSample.Lon, sample.Lat, sample.Lon)
		headingDeg = &derived
	}

	var events []types.EngineEvent

	entered, exited := e.refreshVisible(sample.Lat, sample.Lon)
	if len(entered) > 0 || len(exited) > 0 {
		events = append(events, types.VisibleSetChanged{
			Entered:      entered,
			Exited:       exited,
			VisibleCount: len(e.visible),
			TimestampMs:  sample.TimestampMs,
		})
	}

	if alert := e.evaluateAlerts(sample.Lat, sample.Lon, headingDeg, sample.TimestampMs); alert != nil {
		events = append(events, *alert)
	}

	events = append(events, e.trackZones(sample.Lat, sample.Lon, speedKmh, sample.TimestampMs)...)

	s := sample
	e.lastSample = &s

	return events
}

// ReloadCatalog swaps in a new hazard snapshot without resetting
// cool-down ledgers or an in-progress zone session. A session whose
// corridor disappeared is force-exited with whatever samples it
// collected; the forced exit precedes the visibility re-diff in the
// returned events.
func (e *Engine) ReloadCatalog(hazards []types.HazardPoint, corridors []types.AverageZoneCorridor) []types.EngineEvent {
	next := NewCatalog(hazards, corridors)

	var events []types.EngineEvent

	if e.session != nil {
		if _, stillThere := next.corridorByID[e.session.corridorID]; !stillThere {
			nowMs := int64(0)
			if e.lastSample != nil {
				nowMs = e.lastSample.TimestampMs
			}
			events = append(events, e.zoneExit(nowMs))
		}
	}

	e.catalog = next

	if e.lastSample != nil {
		entered, exited := e.refreshVisible(e.lastSample.Lat, e.lastSample.Lon)
		if len(entered) > 0 || len(exited) > 0 {
			events = append(events, types.VisibleSetChanged{
				Entered:      entered,
				Exited:       exited,
				VisibleCount: len(e.visible),
				TimestampMs:  e.lastSample.TimestampMs,
			})
		}
	} else {
		e.visible = make(map[string]struct{})
	}

	return events
}

// VisibleHazard pairs a visible hazard with its distance from the last
// ingested position.
type VisibleHazard struct {
	Hazard    types.HazardPoint `json:"hazard"`
	DistanceM float64           `json:"distance_m"`
}

// VisibleHazards returns the hazards currently inside the visibility
// window, nearest first. Empty before the first ingest.
func (e *Engine) VisibleHazards() []VisibleHazard {
	if e.lastSample == nil || len(e.visible) == 0 {
		return nil
	}
	out := make([]VisibleHazard, 0, len(e.visible))
	for _, h := range e.catalog.Hazards() {
		if _, ok := e.visible[h.ID]; !ok {
			continue
		}
		out = append(out, VisibleHazard{
			Hazard:    h,
			DistanceM: DistanceMeters(e.lastSample.Lat, e.lastSample.Lon, h.Lat, h.Lon),
		})
	}
	sortVisible(out)
	return out
}

// ZoneStatus describes an active corridor traversal for status readers.
type ZoneStatus struct {
	SessionID   string  `json:"session_id"`
	CorridorID  string  `json:"corridor_id"`
	LimitKmh    float64 `json:"limit_kmh"`
	EnteredAtMs int64   `json:"entered_at_ms"`
	Pct         float64 `json:"pct"`
	Samples     int     `json:"samples"`
}

// Snapshot is a copyable view of the engine state for collaborators that
// must not touch the live structures.
type Snapshot struct {
	LastSample   *types.PositionSample `json:"last_sample,omitempty"`
	SpeedKmh     float64               `json:"speed_kmh"`
	VisibleCount int                   `json:"visible_count"`
	HazardCount  int                   `json:"hazard_count"`
	ZoneCount    int                   `json:"zone_count"`
	ActiveZone   *ZoneStatus           `json:"active_zone,omitempty"`
}

// Snapshot returns a copy of the externally relevant state.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		SpeedKmh:     e.lastSpeedKmh,
		VisibleCount: len(e.visible),
		HazardCount:  len(e.catalog.Hazards()),
		ZoneCount:    len(e.catalog.Corridors()),
	}
	if e.lastSample != nil {
		s := *e.lastSample
		snap.LastSample = &s
	}
	if e.session != nil {
		snap.ActiveZone = &ZoneStatus{
			SessionID:   e.session.id,
			CorridorID:  e.session.corridorID,
			LimitKmh:    e.session.limitKmh,
			EnteredAtMs: e.session.enteredAtMs,
			Pct:         e.session.lastPct,
			Samples:     len(e.session.speedSamples),
		}
	}
	return snap
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
