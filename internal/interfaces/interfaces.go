// Package interfaces defines common interface types used across the application.
package interfaces

import (
	"context"
	"time"

	"github.com/roadwatch/roadwatch/internal/engine"
	"github.com/roadwatch/roadwatch/internal/types"
)

// EngineStatus is the read side of the engine runner, consumed by the
// status API
type EngineStatus interface {
	Snapshot() engine.Snapshot
	VisibleHazards() []engine.VisibleHazard
	Stats() types.RunnerStats
}

// CatalogReloader triggers and reports on hazard feed loads
type CatalogReloader interface {
	Reload(ctx context.Context) error
	LastLoad() (lastLoaded time.Time, skipped, total int)
}

// EventSubscriber hands out read-only taps on the event distributor
type EventSubscriber interface {
	Subscribe(buffer int) <-chan types.EngineEvent
}
