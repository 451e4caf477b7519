package nmea

import (
	"fmt"
	"strconv"
	"strings"
)

// Fix is the position information extracted from a single NMEA sentence.
// Not every sentence carries every field: GGA has no speed or course, and
// VTG has no position, so everything beyond validity is optional.
type Fix struct {
	HasPosition bool
	Lat         float64
	Lon         float64
	SpeedKmh    *float64
	HeadingDeg  *float64
}

const knotsToKmh = 1.852

// parseSentence decodes one NMEA 0183 sentence. Sentence types we do not
// care about return (nil, nil); malformed sentences return an error so the
// caller can count them.
func parseSentence(line string) (*Fix, error) {
	line = strings.TrimSpace(line)
	if len(line) < 7 || line[0] != '$' {
		return nil, fmt.Errorf("not an NMEA sentence: %q", line)
	}

	body, err := verifyChecksum(line)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(body, ",")
	// The talker prefix (GP, GN, GL...) varies by receiver; dispatch on
	// the three-letter sentence type only.
	typ := fields[0]
	if len(typ) >= 3 {
		typ = typ[len(typ)-3:]
	}

	switch typ {
	case "RMC":
		return parseRMC(fields)
	case "GGA":
		return parseGGA(fields)
	case "VTG":
		return parseVTG(fields)
	}
	return nil, nil
}

// verifyChecksum validates the *hh suffix and returns the sentence body
// between '$' and '*'.
func verifyChecksum(line string) (string, error) {
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 > len(line) {
		return "", fmt.Errorf("missing checksum: %q", line)
	}

	body := line[1:star]
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return "", fmt.Errorf("unparseable checksum: %q", line)
	}

	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	if sum != byte(want) {
		return "", fmt.Errorf("checksum mismatch: computed %02X, sentence says %02X", sum, want)
	}

	return body, nil
}

// parseRMC handles the recommended minimum sentence: position, speed over
// ground in knots, and course over ground.
func parseRMC(fields []string) (*Fix, error) {
	if len(fields) < 9 {
		return nil, fmt.Errorf("RMC sentence too short: %d fields", len(fields))
	}
	if fields[2] != "A" {
		// Void fix, receiver has no lock yet.
		return nil, nil
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return nil, err
	}
	lon, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return nil, err
	}

	fix := &Fix{HasPosition: true, Lat: lat, Lon: lon}

	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, fmt.Errorf("bad RMC speed %q: %v", fields[7], err)
		}
		kmh := knots * knotsToKmh
		fix.SpeedKmh = &kmh
	}
	if fields[8] != "" {
		course, err := strconv.ParseFloat(fields[8], 64)
		if err != nil {
			return nil, fmt.Errorf("bad RMC course %q: %v", fields[8], err)
		}
		fix.HeadingDeg = &course
	}

	return fix, nil
}

// parseGGA handles the fix-data sentence: position only.
func parseGGA(fields []string) (*Fix, error) {
	if len(fields) < 7 {
		return nil, fmt.Errorf("GGA sentence too short: %d fields", len(fields))
	}
	if fields[6] == "0" || fields[6] == "" {
		// Fix quality 0 means no fix.
		return nil, nil
	}

	lat, err := parseCoordinate(fields[2], fields[3])
	if err != nil {
		return nil, err
	}
	lon, err := parseCoordinate(fields[4], fields[5])
	if err != nil {
		return nil, err
	}

	return &Fix{HasPosition: true, Lat: lat, Lon: lon}, nil
}

// parseVTG handles the track-made-good sentence: course and speed, no
// position.
func parseVTG(fields []string) (*Fix, error) {
	if len(fields) < 8 {
		return nil, fmt.Errorf("VTG sentence too short: %d fields", len(fields))
	}

	fix := &Fix{}
	if fields[1] != "" {
		course, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad VTG course %q: %v", fields[1], err)
		}
		fix.HeadingDeg = &course
	}

	// Prefer the km/h field; fall back to knots for receivers that omit it.
	if len(fields) > 7 && fields[7] != "" {
		kmh, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, fmt.Errorf("bad VTG speed %q: %v", fields[7], err)
		}
		fix.SpeedKmh = &kmh
	} else if fields[5] != "" {
		knots, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("bad VTG speed %q: %v", fields[5], err)
		}
		kmh := knots * knotsToKmh
		fix.SpeedKmh = &kmh
	}

	if fix.SpeedKmh == nil && fix.HeadingDeg == nil {
		return nil, nil
	}
	return fix, nil
}

// parseCoordinate converts NMEA ddmm.mmmm / dddmm.mmmm notation plus a
// hemisphere letter into signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, fmt.Errorf("empty coordinate field")
	}

	dot := strings.IndexByte(value, '.')
	if dot < 3 {
		return 0, fmt.Errorf("malformed coordinate %q", value)
	}

	degrees, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed coordinate %q: %v", value, err)
	}
	minutes, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed coordinate %q: %v", value, err)
	}

	deg := degrees + minutes/60.0
	switch hemisphere {
	case "N", "E":
	case "S", "W":
		deg = -deg
	default:
		return 0, fmt.Errorf("unknown hemisphere %q", hemisphere)
	}
	return deg, nil
}
