// Package feed loads and validates the upstream hazard feed. It is the
// tolerant boundary between messy upstream data and the engine, which
// only ever sees finite, range-checked records.
package feed

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roadwatch/roadwatch/internal/types"
)

// rawRecord covers both hazard points and corridors; the feed mixes them
// in one array and distinguishes them by the "type" field (or by the
// presence of corridor endpoints in older feed generations).
type rawRecord struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	StartLat *float64 `json:"start_lat"`
	StartLon *float64 `json:"start_lon"`
	EndLat   *float64 `json:"end_lat"`
	EndLon   *float64 `json:"end_lon"`
	LimitKmh *float64 `json:"limit_kmh"`
	Unit     string   `json:"unit"`
}

// Result carries the validated snapshot plus skip accounting, so callers
// can refuse suspiciously lossy loads.
type Result struct {
	Hazards   []types.HazardPoint
	Corridors []types.AverageZoneCorridor
	Skipped   int
	Total     int
}

// Parse repairs and decodes a raw feed payload. Individual malformed
// records are skipped and counted, never fatal; only an undecodable
// payload returns an error.
func Parse(raw []byte, defaultUnit string) (*Result, error) {
	repaired := Repair(raw)
	if len(repaired) == 0 {
		return &Result{}, nil
	}

	var records []rawRecord
	if err := json.Unmarshal(repaired, &records); err != nil {
		// A single top-level object is a one-record feed.
		var one rawRecord
		if err2 := json.Unmarshal(repaired, &one); err2 != nil {
			return nil, fmt.Errorf("undecodable feed payload: %w", err)
		}
		records = []rawRecord{one}
	}

	res := &Result{Total: len(records)}
	for _, rec := range records {
		switch {
		case rec.isCorridor():
			z, ok := rec.toCorridor()
			if !ok {
				res.Skipped++
				continue
			}
			res.Corridors = append(res.Corridors, z)
		default:
			h, ok := rec.toHazard(defaultUnit)
			if !ok {
				res.Skipped++
				continue
			}
			res.Hazards = append(res.Hazards, h)
		}
	}

	return res, nil
}

func (r rawRecord) isCorridor() bool {
	if r.Type == "average_zone_corridor" || r.Type == "corridor" {
		return true
	}
	return r.StartLat != nil && r.StartLon != nil && r.EndLat != nil && r.EndLon != nil
}

func (r rawRecord) toHazard(defaultUnit string) (types.HazardPoint, bool) {
	if !validCoord(r.Lat, 90) || !validCoord(r.Lon, 180) {
		return types.HazardPoint{}, false
	}

	kind := types.HazardFixed
	if r.Type == "average_zone" || r.Type == "average_zone_camera" {
		kind = types.HazardAverageZoneCamera
	}

	unit := r.Unit
	if unit == "" {
		unit = defaultUnit
	}

	return types.HazardPoint{
		ID:        r.ID,
		Lat:       *r.Lat,
		Lon:       *r.Lon,
		Kind:      kind,
		SpeedUnit: unit,
	}, true
}

func (r rawRecord) toCorridor() (types.AverageZoneCorridor, bool) {
	if !validCoord(r.StartLat, 90) || !validCoord(r.StartLon, 180) ||
		!validCoord(r.EndLat, 90) || !validCoord(r.EndLon, 180) {
		return types.AverageZoneCorridor{}, false
	}
	if *r.StartLat == *r.EndLat && *r.StartLon == *r.EndLon {
		return types.AverageZoneCorridor{}, false
	}
	if r.LimitKmh == nil || !(*r.LimitKmh > 0) {
		return types.AverageZoneCorridor{}, false
	}

	return types.AverageZoneCorridor{
		ID:            r.ID,
		StartLat:      *r.StartLat,
		StartLon:      *r.StartLon,
		EndLat:        *r.EndLat,
		EndLon:        *r.EndLon,
		SpeedLimitKmh: *r.LimitKmh,
	}, true
}

func validCoord(v *float64, bound float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= -bound && *v <= bound
}
