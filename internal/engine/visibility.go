package engine

import "sort"

// refreshVisible rediffs the visible set against the current catalog and
// position. A hazard enters when its distance drops to the visibility
// radius or below, exits when it no longer does. The scan is O(hazards)
// per call; catalogs in scope are bounded to tens of thousands of points
// and samples arrive at a few Hz, so no spatial index is kept. Swapping
// in a grid or quad-tree would not change this contract.
//
// Hazards with non-finite coordinates produce NaN distances, never satisfy
// the threshold, and are silently inert.
func (e *Engine) refreshVisible(lat, lon float64) (entered, exited []string) {
	inRange := make(map[string]struct{}, len(e.visible))

	for _, h := range e.catalog.Hazards() {
		if DistanceMeters(lat, lon, h.Lat, h.Lon) <= e.opts.CameraVisibleRadiusM {
			inRange[h.ID] = struct{}{}
			if _, seen := e.visible[h.ID]; !seen {
				entered = append(entered, h.ID)
			}
		}
	}

	for id := range e.visible {
		if _, still := inRange[id]; !still {
			exited = append(exited, id)
		}
	}
	// Entered follows catalog order; exited comes off a map and needs
	// sorting to keep event payloads deterministic.
	sort.Strings(exited)

	e.visible = inRange
	return entered, exited
}

func sortVisible(v []VisibleHazard) {
	sort.Slice(v, func(i, j int) bool { return v[i].DistanceM < v[j].DistanceM })
}
