package engine

import (
	"fmt"
	"math"

	"github.com/roadwatch/roadwatch/internal/types"
)

// Catalog is an immutable snapshot of hazard points and average-speed
// corridors for a session. Replacement is a whole-snapshot swap via
// Engine.ReloadCatalog; there is no mutation API.
type Catalog struct {
	hazards      []types.HazardPoint
	corridors    []types.AverageZoneCorridor
	hazardByID   map[string]int
	corridorByID map[string]int
}

// NewCatalog builds a snapshot from already-validated records. Records
// without an id get one derived from their rounded coordinates; a later
// record with the same id as an earlier one is dropped.
func NewCatalog(hazards []types.HazardPoint, corridors []types.AverageZoneCorridor) *Catalog {
	c := &Catalog{
		hazardByID:   make(map[string]int, len(hazards)),
		corridorByID: make(map[string]int, len(corridors)),
	}

	for _, h := range hazards {
		if h.ID == "" {
			h.ID = DeriveHazardID(h.Lat, h.Lon)
		}
		if _, dup := c.hazardByID[h.ID]; dup {
			continue
		}
		c.hazardByID[h.ID] = len(c.hazards)
		c.hazards = append(c.hazards, h)
	}

	for _, z := range corridors {
		if z.ID == "" {
			z.ID = DeriveCorridorID(z.StartLat, z.StartLon, z.EndLat, z.EndLon)
		}
		if _, dup := c.corridorByID[z.ID]; dup {
			continue
		}
		c.corridorByID[z.ID] = len(c.corridors)
		c.corridors = append(c.corridors, z)
	}

	return c
}

// DeriveHazardID produces a stable identifier from coordinates rounded to
// five decimal places (~1.1 m), since upstream feeds provide no id of
// their own. An unchanged camera keeps its id across feed reloads.
func DeriveHazardID(lat, lon float64) string {
	return fmt.Sprintf("h:%.5f,%.5f", roundCoord(lat), roundCoord(lon))
}

// DeriveCorridorID is the corridor analog of DeriveHazardID.
func DeriveCorridorID(startLat, startLon, endLat, endLon float64) string {
	return fmt.Sprintf("z:%.5f,%.5f-%.5f,%.5f",
		roundCoord(startLat), roundCoord(startLon), roundCoord(endLat), roundCoord(endLon))
}

func roundCoord(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// Hazards returns the hazard snapshot. The slice is shared; callers must
// treat it as read-only.
func (c *Catalog) Hazards() []types.HazardPoint {
	return c.hazards
}

// Corridors returns the corridor snapshot. Read-only, as with Hazards.
func (c *Catalog) Corridors() []types.AverageZoneCorridor {
	return c.corridors
}

// Hazard looks up a hazard by id.
func (c *Catalog) Hazard(id string) (types.HazardPoint, bool) {
	i, ok := c.hazardByID[id]
	if !ok {
		return types.HazardPoint{}, false
	}
	return c.hazards[i], true
}

// Corridor looks up a corridor by id.
func (c *Catalog) Corridor(id string) (types.AverageZoneCorridor, bool) {
	i, ok := c.corridorByID[id]
	if !ok {
		return types.AverageZoneCorridor{}, false
	}
	return c.corridors[i], true
}
