package engine

import (
	"github.com/google/uuid"
	"github.com/roadwatch/roadwatch/internal/types"
	"gonum.org/v1/gonum/stat"
)

// zoneSession is an in-progress traversal of an average-speed corridor.
type zoneSession struct {
	id           string
	corridorID   string
	limitKmh     float64
	enteredAtMs  int64
	speedSamples []float64
	lastPct      float64
}

// corridorMembership applies the tolerance-based "near the line segment"
// test: the position is on the corridor when the detour through it is
// under the gap epsilon and it has not run past the end by more than the
// overrun epsilon. This deliberately tolerates GPS jitter and slight
// corridor curvature instead of projecting onto the exact segment.
// Returns the progress fraction along the corridor, clamped to [0,1].
func (e *Engine) corridorMembership(z types.AverageZoneCorridor, lat, lon float64) (pct float64, on bool) {
	total := DistanceMeters(z.StartLat, z.StartLon, z.EndLat, z.EndLon)
	if !(total > 0) {
		return 0, false
	}
	dStart := DistanceMeters(z.StartLat, z.StartLon, lat, lon)
	dEnd := DistanceMeters(z.EndLat, z.EndLon, lat, lon)

	gap := dStart + dEnd - total
	if gap < 0 {
		gap = -gap
	}
	if gap >= e.opts.ZoneGapEpsilonM || dStart > total+e.opts.ZoneOverrunEpsilonM {
		return 0, false
	}

	pct = dStart / total
	if pct > 1 {
		pct = 1
	}
	return pct, true
}

// matchCorridor finds the first corridor containing the position, in
// catalog order.
func (e *Engine) matchCorridor(lat, lon float64) (types.AverageZoneCorridor, float64, bool) {
	for _, z := range e.catalog.Corridors() {
		if pct, on := e.corridorMembership(z, lat, lon); on {
			return z, pct, true
		}
	}
	return types.AverageZoneCorridor{}, 0, false
}

// trackZones advances the Idle/InZone state machine for one sample.
// A corridor switch produces the exit and the new entry atomically, in
// that order, within the same call.
func (e *Engine) trackZones(lat, lon, speedKmh float64, nowMs int64) []types.EngineEvent {
	var events []types.EngineEvent

	if e.session != nil {
		// The active corridor wins when corridors overlap.
		if z, ok := e.catalog.Corridor(e.session.corridorID); ok {
			if pct, on := e.corridorMembership(z, lat, lon); on {
				return append(events, e.zoneProgress(pct, speedKmh, nowMs))
			}
		}

		events = append(events, e.zoneExit(nowMs))
	}

	if z, pct, ok := e.matchCorridor(lat, lon); ok {
		events = append(events, e.zoneEnter(z, pct, nowMs))
	}

	return events
}

func (e *Engine) zoneEnter(z types.AverageZoneCorridor, pct float64, nowMs int64) types.EngineEvent {
	e.session = &zoneSession{
		id:          uuid.NewString(),
		corridorID:  z.ID,
		limitKmh:    z.SpeedLimitKmh,
		enteredAtMs: nowMs,
		lastPct:     pct,
	}
	return types.ZoneEntered{
		SessionID:   e.session.id,
		CorridorID:  z.ID,
		LimitKmh:    z.SpeedLimitKmh,
		TimestampMs: nowMs,
	}
}

func (e *Engine) zoneProgress(pct, speedKmh float64, nowMs int64) types.EngineEvent {
	s := e.session

	// The buffer is capped to approximate a rolling average without
	// unbounded growth; oldest samples drop first.
	if e.opts.ZoneSpeedSampleCap > 0 && len(s.speedSamples) >= e.opts.ZoneSpeedSampleCap {
		copy(s.speedSamples, s.speedSamples[1:])
		s.speedSamples[len(s.speedSamples)-1] = speedKmh
	} else {
		s.speedSamples = append(s.speedSamples, speedKmh)
	}
	s.lastPct = pct

	return types.ZoneProgress{
		SessionID:   s.id,
		CorridorID:  s.corridorID,
		Pct:         pct,
		CurrentKmh:  speedKmh,
		LimitKmh:    s.limitKmh,
		OverByKmh:   speedKmh - s.limitKmh,
		TimestampMs: nowMs,
	}
}

func (e *Engine) zoneExit(nowMs int64) types.EngineEvent {
	s := e.session
	e.session = nil

	avg := 0.0
	if len(s.speedSamples) > 0 {
		avg = stat.Mean(s.speedSamples, nil)
	}

	return types.ZoneExited{
		SessionID:   s.id,
		CorridorID:  s.corridorID,
		AvgKmh:      avg,
		LimitKmh:    s.limitKmh,
		DurationMs:  nowMs - s.enteredAtMs,
		TimestampMs: nowMs,
	}
}
