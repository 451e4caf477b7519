package nmea

import (
	"math"
	"testing"
)

func TestParseSentenceRMC(t *testing.T) {
	fix, err := parseSentence("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	if err != nil {
		t.Fatalf("parseSentence() error: %v", err)
	}
	if fix == nil || !fix.HasPosition {
		t.Fatal("expected a positional fix")
	}

	if math.Abs(fix.Lat-48.1173) > 1e-6 {
		t.Errorf("Lat = %v, want 48.1173", fix.Lat)
	}
	if math.Abs(fix.Lon-11.5166667) > 1e-6 {
		t.Errorf("Lon = %v, want 11.5166667", fix.Lon)
	}
	if fix.SpeedKmh == nil || math.Abs(*fix.SpeedKmh-41.4848) > 1e-6 {
		t.Errorf("SpeedKmh = %v, want 41.4848", fix.SpeedKmh)
	}
	if fix.HeadingDeg == nil || math.Abs(*fix.HeadingDeg-84.4) > 1e-9 {
		t.Errorf("HeadingDeg = %v, want 84.4", fix.HeadingDeg)
	}
}

func TestParseSentenceSouthernHemisphere(t *testing.T) {
	fix, err := parseSentence("$GNRMC,101112,A,3350.000,S,15110.000,E,010.0,180.0,230826,,*18")
	if err != nil {
		t.Fatalf("parseSentence() error: %v", err)
	}
	if fix == nil || !fix.HasPosition {
		t.Fatal("expected a positional fix")
	}

	if math.Abs(fix.Lat-(-33.8333333)) > 1e-6 {
		t.Errorf("Lat = %v, want -33.8333333", fix.Lat)
	}
	if math.Abs(fix.Lon-151.1666667) > 1e-6 {
		t.Errorf("Lon = %v, want 151.1666667", fix.Lon)
	}
}

func TestParseSentenceGGA(t *testing.T) {
	fix, err := parseSentence("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	if err != nil {
		t.Fatalf("parseSentence() error: %v", err)
	}
	if fix == nil || !fix.HasPosition {
		t.Fatal("expected a positional fix")
	}
	if fix.SpeedKmh != nil || fix.HeadingDeg != nil {
		t.Error("GGA should not carry speed or heading")
	}
}

func TestParseSentenceVTG(t *testing.T) {
	fix, err := parseSentence("$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48")
	if err != nil {
		t.Fatalf("parseSentence() error: %v", err)
	}
	if fix == nil {
		t.Fatal("expected a fix")
	}
	if fix.HasPosition {
		t.Error("VTG should not carry a position")
	}
	if fix.SpeedKmh == nil || math.Abs(*fix.SpeedKmh-10.2) > 1e-9 {
		t.Errorf("SpeedKmh = %v, want 10.2", fix.SpeedKmh)
	}
	if fix.HeadingDeg == nil || math.Abs(*fix.HeadingDeg-54.7) > 1e-9 {
		t.Errorf("HeadingDeg = %v, want 54.7", fix.HeadingDeg)
	}
}

func TestParseSentenceSkips(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"void RMC fix", "$GPRMC,123519,V,,,,,,,230394,,*33"},
		{"GGA without fix", "$GPGGA,123519,4807.038,N,01131.000,E,0,00,,,M,,M,,*52"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix, err := parseSentence(tt.line)
			if err != nil {
				t.Fatalf("parseSentence() error: %v", err)
			}
			if fix != nil {
				t.Errorf("expected nil fix, got %+v", fix)
			}
		})
	}
}

func TestParseSentenceErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bad checksum", "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00"},
		{"missing checksum", "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"},
		{"not a sentence", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseSentence(tt.line); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
