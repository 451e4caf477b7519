package feed

import (
	"encoding/json"
	"testing"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "concatenated objects",
			input: `{"lat": 39.0, "lon": 35.0} {"lat": 40.0, "lon": 36.0}`,
		},
		{
			name:  "concatenated arrays",
			input: `[{"lat": 39.0, "lon": 35.0}] [{"lat": 40.0, "lon": 36.0}]`,
		},
		{
			name:  "trailing commas",
			input: `[{"lat": 39.0, "lon": 35.0,},]`,
		},
		{
			name:  "bare NaN and Infinity",
			input: `[{"lat": NaN, "lon": -Infinity}]`,
		},
		{
			name:  "BOM prefix",
			input: "\xef\xbb\xbf" + `[{"lat": 39.0, "lon": 35.0}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := Repair([]byte(tt.input))
			var v any
			if err := json.Unmarshal(repaired, &v); err != nil {
				t.Errorf("repaired payload still invalid: %v\n%s", err, repaired)
			}
		})
	}
}

func TestRepairPreservesQuotedLiterals(t *testing.T) {
	raw := `[{"note": "NaN and Infinity ahead", "lat": NaN, "lon": -Infinity}]`

	var records []struct {
		Note string   `json:"note"`
		Lat  *float64 `json:"lat"`
		Lon  *float64 `json:"lon"`
	}
	if err := json.Unmarshal(Repair([]byte(raw)), &records); err != nil {
		t.Fatalf("repaired payload invalid: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Note != "NaN and Infinity ahead" {
		t.Errorf("quoted value was rewritten: %q", records[0].Note)
	}
	if records[0].Lat != nil || records[0].Lon != nil {
		t.Errorf("bare literals should become null, got lat=%v lon=%v", records[0].Lat, records[0].Lon)
	}
}

func TestParseMixedFeed(t *testing.T) {
	raw := `[
		{"type": "fixed", "lat": 39.0, "lon": 35.0},
		{"type": "average_zone", "lat": 39.5, "lon": 35.5, "unit": "mph"},
		{"type": "corridor", "start_lat": 39.0, "start_lon": 35.0, "end_lat": 39.01, "end_lon": 35.0, "limit_kmh": 110}
	]`

	res, err := Parse([]byte(raw), "kmh")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if len(res.Hazards) != 2 {
		t.Fatalf("expected 2 hazards, got %d", len(res.Hazards))
	}
	if res.Hazards[0].SpeedUnit != "kmh" {
		t.Errorf("default unit not applied: %q", res.Hazards[0].SpeedUnit)
	}
	if res.Hazards[1].SpeedUnit != "mph" {
		t.Errorf("explicit unit overridden: %q", res.Hazards[1].SpeedUnit)
	}
	if len(res.Corridors) != 1 {
		t.Fatalf("expected 1 corridor, got %d", len(res.Corridors))
	}
	if res.Corridors[0].SpeedLimitKmh != 110 {
		t.Errorf("corridor limit = %v", res.Corridors[0].SpeedLimitKmh)
	}
	if res.Skipped != 0 {
		t.Errorf("unexpected skips: %d", res.Skipped)
	}
}

func TestParseSkipsInvalidRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"latitude out of range", `[{"lat": 95.0, "lon": 35.0}]`},
		{"longitude out of range", `[{"lat": 39.0, "lon": 185.0}]`},
		{"missing coordinates", `[{"type": "fixed"}]`},
		{"NaN coordinates", `[{"lat": NaN, "lon": 35.0}]`},
		{"degenerate corridor", `[{"type": "corridor", "start_lat": 39.0, "start_lon": 35.0, "end_lat": 39.0, "end_lon": 35.0, "limit_kmh": 110}]`},
		{"corridor without limit", `[{"type": "corridor", "start_lat": 39.0, "start_lon": 35.0, "end_lat": 39.01, "end_lon": 35.0}]`},
		{"negative limit", `[{"type": "corridor", "start_lat": 39.0, "start_lon": 35.0, "end_lat": 39.01, "end_lon": 35.0, "limit_kmh": -5}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse([]byte(tt.raw), "kmh")
			if err != nil {
				t.Fatalf("Parse() should not fail on bad records: %v", err)
			}
			if res.Skipped != 1 {
				t.Errorf("expected 1 skipped record, got %d (hazards=%d corridors=%d)",
					res.Skipped, len(res.Hazards), len(res.Corridors))
			}
			if len(res.Hazards) != 0 || len(res.Corridors) != 0 {
				t.Errorf("invalid record leaked through")
			}
		})
	}
}

func TestParseConcatenatedFeed(t *testing.T) {
	raw := `{"type": "fixed", "lat": 39.0, "lon": 35.0} {"type": "fixed", "lat": 40.0, "lon": 36.0}`

	res, err := Parse([]byte(raw), "kmh")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(res.Hazards) != 2 {
		t.Errorf("expected 2 hazards from concatenated objects, got %d", len(res.Hazards))
	}
}

func TestParseSingleObjectFeed(t *testing.T) {
	res, err := Parse([]byte(`{"type": "fixed", "lat": 39.0, "lon": 35.0}`), "kmh")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(res.Hazards) != 1 {
		t.Errorf("expected 1 hazard, got %d", len(res.Hazards))
	}
}

func TestParseEmptyPayload(t *testing.T) {
	res, err := Parse([]byte("   "), "kmh")
	if err != nil {
		t.Fatalf("Parse() error on empty payload: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}
