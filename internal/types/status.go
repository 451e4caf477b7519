package types

import "time"

// RunnerStats are the engine runner counters exposed on the status API.
type RunnerStats struct {
	StartedAt       time.Time `json:"started_at"`
	SamplesIngested uint64    `json:"samples_ingested"`
	EventsEmitted   uint64    `json:"events_emitted"`
}
