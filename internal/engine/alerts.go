package engine

import (
	"sort"

	"github.com/roadwatch/roadwatch/internal/types"
)

// alertCandidate is a hazard within alert range, annotated with the
// geometry needed by the filters.
type alertCandidate struct {
	hazard     types.HazardPoint
	distanceM  float64
	bearingDeg float64
}

// evaluateAlerts picks the hazard to alert on for this sample, or nil.
//
// Candidates are iterated in ascending distance order so "first
// qualifying" means "nearest qualifying". A hazard qualifies when it is
// within the ahead cone of the travel heading and outside its per-hazard
// cool-down. When heading is unknown every hazard counts as ahead rather
// than suppressing all alerts. The global cool-down blocks emission for
// the whole call; at most one alert fires per ingested sample.
func (e *Engine) evaluateAlerts(lat, lon float64, headingDeg *float64, nowMs int64) *types.HazardAlert {
	if nowMs-e.lastGlobalAlertMs < e.opts.GlobalThrottleMs && e.lastGlobalAlertMs != 0 {
		return nil
	}

	var candidates []alertCandidate
	for _, h := range e.catalog.Hazards() {
		d := DistanceMeters(lat, lon, h.Lat, h.Lon)
		if d <= e.opts.AlertDistanceM {
			candidates = append(candidates, alertCandidate{
				hazard:     h,
				distanceM:  d,
				bearingDeg: BearingDegrees(lat, lon, h.Lat, h.Lon),
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distanceM < candidates[j].distanceM
	})

	for _, cand := range candidates {
		if headingDeg != nil && AngularDifference(cand.bearingDeg, *headingDeg) > e.opts.AheadAngleDeg {
			continue
		}
		if last, ok := e.perHazardLastAlertMs[cand.hazard.ID]; ok && nowMs-last < e.opts.PerHazardThrottleMs {
			continue
		}

		// Cool-down timestamps only move forward; a stale nowMs from a
		// misbehaving source must not rewind the ledgers.
		if nowMs > e.perHazardLastAlertMs[cand.hazard.ID] {
			e.perHazardLastAlertMs[cand.hazard.ID] = nowMs
		}
		if nowMs > e.lastGlobalAlertMs {
			e.lastGlobalAlertMs = nowMs
		}

		return &types.HazardAlert{
			HazardID:    cand.hazard.ID,
			Kind:        cand.hazard.Kind,
			DistanceM:   cand.distanceM,
			BearingDeg:  cand.bearingDeg,
			TimestampMs: nowMs,
		}
	}

	return nil
}
