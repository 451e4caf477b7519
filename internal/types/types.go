// Package types defines the data types shared between position sources,
// the proximity engine, and event sinks.
package types

// HazardKind identifies the class of a speed-enforcement point.
type HazardKind string

const (
	// HazardFixed is a fixed-position speed camera.
	HazardFixed HazardKind = "fixed"
	// HazardAverageZoneCamera is a camera that anchors an
	// average-speed enforcement corridor.
	HazardAverageZoneCamera HazardKind = "average_zone"
)

// HazardPoint is a single enforcement point. Records are immutable once
// loaded; the upstream feed provides no stable identifier, so an empty ID
// is backfilled from the rounded coordinates when the catalog is built.
type HazardPoint struct {
	ID        string     `json:"id" gorm:"column:hazard_id"`
	Lat       float64    `json:"lat" gorm:"column:lat"`
	Lon       float64    `json:"lon" gorm:"column:lon"`
	Kind      HazardKind `json:"kind" gorm:"column:kind"`
	SpeedUnit string     `json:"speed_unit,omitempty" gorm:"column:speed_unit"`
}

// AverageZoneCorridor is a straight-line approximation of an average-speed
// enforcement zone between two coordinates.
type AverageZoneCorridor struct {
	ID            string  `json:"id"`
	StartLat      float64 `json:"start_lat"`
	StartLon      float64 `json:"start_lon"`
	EndLat        float64 `json:"end_lat"`
	EndLon        float64 `json:"end_lon"`
	SpeedLimitKmh float64 `json:"speed_limit_kmh"`
}

// PositionSample is one fix from a position source. SpeedKmh and
// HeadingDeg are nil when the device did not report them; the engine
// backfills both.
type PositionSample struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	SpeedKmh    *float64 `json:"speed_kmh"`
	HeadingDeg  *float64 `json:"heading_deg"`
	TimestampMs int64    `json:"timestamp_ms"`
	SourceName  string   `json:"source_name,omitempty"`
}
