// Package sinks defines interfaces and implementations for engine event
// delivery backends.
package sinks

import (
	"context"
	"sync"

	"github.com/roadwatch/roadwatch/internal/types"
)

// EventSink is an interface that provides a few standardized methods for
// various event delivery backends
type EventSink interface {
	StartEventSink(context.Context, *sync.WaitGroup) chan<- types.EngineEvent
}
