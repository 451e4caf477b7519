package engine

import (
	"testing"

	"github.com/roadwatch/roadwatch/internal/types"
)

func TestDeriveHazardIDStable(t *testing.T) {
	a := DeriveHazardID(39.000001, 35.000001)
	b := DeriveHazardID(39.0000012, 35.0000014)
	if a != b {
		t.Errorf("ids differ for sub-precision jitter: %q vs %q", a, b)
	}

	c := DeriveHazardID(39.0001, 35.0)
	if a == c {
		t.Errorf("ids collide for distinct coordinates: %q", a)
	}
}

func TestNewCatalogBackfillsIDs(t *testing.T) {
	cat := NewCatalog(
		[]types.HazardPoint{
			{Lat: 39.0, Lon: 35.0, Kind: types.HazardFixed},
			{ID: "custom", Lat: 40.0, Lon: 36.0, Kind: types.HazardFixed},
		},
		[]types.AverageZoneCorridor{
			{StartLat: 39, StartLon: 35, EndLat: 39.1, EndLon: 35, SpeedLimitKmh: 110},
		},
	)

	if len(cat.Hazards()) != 2 {
		t.Fatalf("expected 2 hazards, got %d", len(cat.Hazards()))
	}
	if cat.Hazards()[0].ID == "" {
		t.Error("missing derived hazard id")
	}
	if _, ok := cat.Hazard("custom"); !ok {
		t.Error("explicit id not preserved")
	}
	if cat.Corridors()[0].ID == "" {
		t.Error("missing derived corridor id")
	}
}

func TestNewCatalogDropsDuplicates(t *testing.T) {
	cat := NewCatalog([]types.HazardPoint{
		{Lat: 39.0, Lon: 35.0, Kind: types.HazardFixed, SpeedUnit: "kmh"},
		{Lat: 39.0, Lon: 35.0, Kind: types.HazardFixed, SpeedUnit: "mph"},
	}, nil)

	if len(cat.Hazards()) != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d hazards", len(cat.Hazards()))
	}
	if cat.Hazards()[0].SpeedUnit != "kmh" {
		t.Error("first record should win on duplicate id")
	}
}
