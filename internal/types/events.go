package types

// EngineEvent is the tagged union carried on the event distributor.
// Each concrete event names itself so sinks can store or route it
// without type switches on every field.
type EngineEvent interface {
	EventName() string
}

// VisibleSetChanged reports hazards that entered or left the visibility
// window on this ingest.
type VisibleSetChanged struct {
	Entered      []string `json:"entered,omitempty"`
	Exited       []string `json:"exited,omitempty"`
	VisibleCount int      `json:"visible_count"`
	TimestampMs  int64    `json:"timestamp_ms"`
}

func (VisibleSetChanged) EventName() string { return "visible_set_changed" }

// HazardAlert fires for the nearest qualifying hazard ahead of travel.
// At most one is emitted per ingested sample.
type HazardAlert struct {
	HazardID    string     `json:"hazard_id"`
	Kind        HazardKind `json:"kind"`
	DistanceM   float64    `json:"distance_m"`
	BearingDeg  float64    `json:"bearing_deg"`
	TimestampMs int64      `json:"timestamp_ms"`
}

func (HazardAlert) EventName() string { return "hazard_alert" }

// ZoneEntered marks the transition into an average-speed corridor.
type ZoneEntered struct {
	SessionID   string  `json:"session_id"`
	CorridorID  string  `json:"corridor_id"`
	LimitKmh    float64 `json:"limit_kmh"`
	TimestampMs int64   `json:"timestamp_ms"`
}

func (ZoneEntered) EventName() string { return "zone_entered" }

// ZoneProgress is emitted on every sample inside a corridor after entry.
type ZoneProgress struct {
	SessionID   string  `json:"session_id"`
	CorridorID  string  `json:"corridor_id"`
	Pct         float64 `json:"pct"`
	CurrentKmh  float64 `json:"current_kmh"`
	LimitKmh    float64 `json:"limit_kmh"`
	OverByKmh   float64 `json:"over_by_kmh"`
	TimestampMs int64   `json:"timestamp_ms"`
}

func (ZoneProgress) EventName() string { return "zone_progress" }

// ZoneExited closes a corridor traversal with the running-average speed
// over the samples collected during the session.
type ZoneExited struct {
	SessionID   string  `json:"session_id"`
	CorridorID  string  `json:"corridor_id"`
	AvgKmh      float64 `json:"avg_kmh"`
	LimitKmh    float64 `json:"limit_kmh"`
	DurationMs  int64   `json:"duration_ms"`
	TimestampMs int64   `json:"timestamp_ms"`
}

func (ZoneExited) EventName() string { return "zone_exited" }
