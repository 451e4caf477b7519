package engine

import (
	"math"
	"testing"

	"github.com/roadwatch/roadwatch/internal/types"
)

func f64(v float64) *float64 { return &v }

func sampleAt(lat, lon float64, speedKmh, headingDeg *float64, ts int64) types.PositionSample {
	return types.PositionSample{
		Lat:         lat,
		Lon:         lon,
		SpeedKmh:    speedKmh,
		HeadingDeg:  headingDeg,
		TimestampMs: ts,
	}
}

func fixedHazard(lat, lon float64) types.HazardPoint {
	return types.HazardPoint{ID: DeriveHazardID(lat, lon), Lat: lat, Lon: lon, Kind: types.HazardFixed}
}

func eventNames(events []types.EngineEvent) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.EventName()
	}
	return names
}

func findAlert(events []types.EngineEvent) *types.HazardAlert {
	for _, ev := range events {
		if a, ok := ev.(types.HazardAlert); ok {
			return &a
		}
	}
	return nil
}

func TestEndToEndScenario(t *testing.T) {
	// Catalog has one fixed hazard; the user sits ~111 m south of it,
	// heading north, inside both the visibility window and alert range.
	hazard := fixedHazard(39.000, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))

	events := e.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), 10000))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", eventNames(events))
	}

	vsc, ok := events[0].(types.VisibleSetChanged)
	if !ok {
		t.Fatalf("first event should be VisibleSetChanged, got %s", events[0].EventName())
	}
	if len(vsc.Entered) != 1 || vsc.Entered[0] != hazard.ID {
		t.Errorf("expected hazard to enter visible set, got %+v", vsc)
	}

	alert, ok := events[1].(types.HazardAlert)
	if !ok {
		t.Fatalf("second event should be HazardAlert, got %s", events[1].EventName())
	}
	if alert.HazardID != hazard.ID {
		t.Errorf("alert for wrong hazard: %s", alert.HazardID)
	}
	if math.Abs(alert.DistanceM-111.2) > 1 {
		t.Errorf("alert distance = %v, expected ≈111.2", alert.DistanceM)
	}

	// Same position one second later: no visibility change, and the
	// hazard is still in cool-down, so nothing comes out.
	events = e.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), 11000))
	if len(events) != 0 {
		t.Errorf("expected no events on second ingest, got %v", eventNames(events))
	}
}

func TestPerHazardThrottle(t *testing.T) {
	hazard := fixedHazard(39.000, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))

	alerts := 0
	for _, ts := range []int64{10000, 11000} {
		if findAlert(e.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), ts))) != nil {
			alerts++
		}
	}
	if alerts != 1 {
		t.Errorf("expected exactly 1 alert across the throttle window, got %d", alerts)
	}

	// After the per-hazard window elapses the same hazard may fire again.
	if findAlert(e.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), 16000))) == nil {
		t.Error("expected alert after cool-down expiry")
	}
}

func TestAheadFilter(t *testing.T) {
	hazard := fixedHazard(39.000, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))

	// Hazard exactly behind: user north of it, heading further north.
	events := e.Ingest(sampleAt(39.001, 35.000, f64(90), f64(0), 10000))
	if findAlert(events) != nil {
		t.Error("hazard at 180° angular difference must never alert")
	}

	// Hazard dead ahead alerts once per cool-down window.
	e2 := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))
	if findAlert(e2.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), 10000))) == nil {
		t.Error("hazard at 0° angular difference should alert")
	}
}

func TestNoHeadingIsPermissive(t *testing.T) {
	hazard := fixedHazard(39.000, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))

	// First sample ever: no device heading and no previous fix to derive
	// one from. The hazard still alerts rather than being suppressed.
	if findAlert(e.Ingest(sampleAt(38.999, 35.000, f64(90), nil, 10000))) == nil {
		t.Error("expected permissive alert with unknown heading")
	}
}

func TestDerivedHeadingFiltersBehind(t *testing.T) {
	hazard := fixedHazard(39.000, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))

	// Drive north past the hazard with no device heading. Heading is
	// derived from consecutive fixes, so once the hazard is behind the
	// derived bearing rejects it.
	e.Ingest(sampleAt(39.0005, 35.000, f64(90), nil, 10000))
	events := e.Ingest(sampleAt(39.0010, 35.000, f64(90), nil, 20000))
	if a := findAlert(events); a != nil {
		t.Errorf("hazard behind derived heading should not alert, got %+v", a)
	}
}

func TestNearestQualifyingWins(t *testing.T) {
	near := fixedHazard(39.002, 35.000) // ≈222 m ahead
	far := fixedHazard(39.004, 35.000)  // ≈445 m ahead
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{far, near}, nil))

	alert := findAlert(e.Ingest(sampleAt(39.000, 35.000, f64(90), f64(0), 10000)))
	if alert == nil {
		t.Fatal("expected an alert")
	}
	if alert.HazardID != near.ID {
		t.Errorf("expected nearest hazard %s, got %s", near.ID, alert.HazardID)
	}

	// Nearest is now cooling down; once the global window passes, the
	// farther hazard is the first qualifying candidate.
	alert = findAlert(e.Ingest(sampleAt(39.000, 35.000, f64(90), f64(0), 13000)))
	if alert == nil {
		t.Fatal("expected an alert for the farther hazard")
	}
	if alert.HazardID != far.ID {
		t.Errorf("expected farther hazard %s, got %s", far.ID, alert.HazardID)
	}
}

func TestGlobalThrottleSuppressesOtherHazards(t *testing.T) {
	a := fixedHazard(39.002, 35.000)
	b := fixedHazard(39.003, 35.001)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{a, b}, nil))

	if findAlert(e.Ingest(sampleAt(39.000, 35.000, f64(90), f64(0), 10000))) == nil {
		t.Fatal("expected initial alert")
	}
	// 1s later: hazard b qualifies on its own ledger but the global
	// window (2.5s) is still open.
	if findAlert(e.Ingest(sampleAt(39.000, 35.000, f64(90), f64(10), 11000))) != nil {
		t.Error("global throttle should suppress all alerts inside its window")
	}
}

func TestVisibilityEnterAndExit(t *testing.T) {
	opts := DefaultOptions()
	opts.CameraVisibleRadiusM = 1000

	hazard := fixedHazard(39.000, 35.000)
	e := New(opts, NewCatalog([]types.HazardPoint{hazard}, nil))

	// Approach within radius, pointed away so no alert muddies the check.
	events := e.Ingest(sampleAt(39.005, 35.000, f64(90), f64(0), 1000))
	vsc, ok := events[0].(types.VisibleSetChanged)
	if !ok || len(vsc.Entered) != 1 {
		t.Fatalf("expected enter event, got %v", eventNames(events))
	}

	// Drive far away: the hazard exits.
	events = e.Ingest(sampleAt(39.100, 35.000, f64(90), f64(0), 2000))
	found := false
	for _, ev := range events {
		if v, ok := ev.(types.VisibleSetChanged); ok {
			if len(v.Exited) == 1 && v.Exited[0] == hazard.ID && len(v.Entered) == 0 {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected exit event, got %v", eventNames(events))
	}
}

func TestStickySpeedFallback(t *testing.T) {
	e := New(DefaultOptions(), NewCatalog(nil, nil))

	e.Ingest(sampleAt(39.0, 35.0, f64(80), nil, 1000))
	e.Ingest(sampleAt(39.001, 35.0, nil, nil, 2000))

	if got := e.Snapshot().SpeedKmh; got != 80 {
		t.Errorf("speed should stick at 80, got %v", got)
	}

	// Non-finite speed is treated as absent.
	e.Ingest(sampleAt(39.002, 35.0, f64(math.NaN()), nil, 3000))
	if got := e.Snapshot().SpeedKmh; got != 80 {
		t.Errorf("NaN speed should not overwrite, got %v", got)
	}
}

func TestNonFiniteHazardIsInert(t *testing.T) {
	bad := types.HazardPoint{ID: "bad", Lat: math.NaN(), Lon: 35.0, Kind: types.HazardFixed}
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{bad}, nil))

	events := e.Ingest(sampleAt(39.0, 35.0, f64(90), f64(0), 1000))
	if len(events) != 0 {
		t.Errorf("non-finite hazard should never match any threshold, got %v", eventNames(events))
	}
}

func TestReloadCatalogKeepsCooldownLedgers(t *testing.T) {
	hazard := fixedHazard(39.000, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{hazard}, nil))

	if findAlert(e.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), 10000))) == nil {
		t.Fatal("expected initial alert")
	}

	// Hot-swap to a catalog carrying the same hazard (same derived id).
	e.ReloadCatalog([]types.HazardPoint{fixedHazard(39.000, 35.000)}, nil)

	if findAlert(e.Ingest(sampleAt(38.999, 35.000, f64(90), f64(0), 11000))) != nil {
		t.Error("cool-down ledger should survive a catalog reload")
	}
}

func TestReloadCatalogRediffsVisibility(t *testing.T) {
	a := fixedHazard(39.001, 35.000)
	b := fixedHazard(39.002, 35.000)
	e := New(DefaultOptions(), NewCatalog([]types.HazardPoint{a}, nil))

	e.Ingest(sampleAt(39.000, 35.000, f64(0), f64(180), 1000))

	events := e.ReloadCatalog([]types.HazardPoint{b}, nil)
	if len(events) != 1 {
		t.Fatalf("expected one visibility event, got %v", eventNames(events))
	}
	vsc := events[0].(types.VisibleSetChanged)
	if len(vsc.Entered) != 1 || vsc.Entered[0] != b.ID {
		t.Errorf("expected %s to enter, got %+v", b.ID, vsc)
	}
	if len(vsc.Exited) != 1 || vsc.Exited[0] != a.ID {
		t.Errorf("expected %s to exit, got %+v", a.ID, vsc)
	}
}
