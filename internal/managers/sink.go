package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/roadwatch/roadwatch/internal/sinks"
	"github.com/roadwatch/roadwatch/internal/sinks/relay"
	"github.com/roadwatch/roadwatch/internal/sinks/timescaledb"
	"github.com/roadwatch/roadwatch/internal/sinks/triplog"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
)

// SinkManager holds our active event sinks
type SinkManager struct {
	Sinks            []SinkEngine
	EventDistributor chan types.EngineEvent

	subscribersMu sync.Mutex
	subscribers   []chan types.EngineEvent
}

// SinkEngine holds a backend sink's interface as well as a channel for
// passing engine events to the sink
type SinkEngine struct {
	Sink sinks.EventSink
	C    chan<- types.EngineEvent
}

// NewSinkManager creates a SinkManager object, populated with all configured sinks
func NewSinkManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider) (*SinkManager, error) {
	var err error

	s := SinkManager{}

	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	// Initialize our channel for passing engine events to the distributor
	s.EventDistributor = make(chan types.EngineEvent, 20)

	// Start our event distributor to fan received events out to sinks and
	// in-process subscribers
	wg.Add(1)
	go s.startEventDistributor(ctx, wg)

	// Check the configuration for the supported sinks and enable them if
	// found

	if cfgData.Sinks.TripLog != nil {
		err = s.AddSink(ctx, wg, "triplog", &cfgData.Sinks)
		if err != nil {
			return &s, fmt.Errorf("could not add trip log sink: %v", err)
		}
	}

	if cfgData.Sinks.TimescaleDB != nil {
		err = s.AddSink(ctx, wg, "timescaledb", &cfgData.Sinks)
		if err != nil {
			return &s, fmt.Errorf("could not add TimescaleDB sink: %v", err)
		}
	}

	if cfgData.Sinks.Relay != nil {
		err = s.AddSink(ctx, wg, "relay", &cfgData.Sinks)
		if err != nil {
			return &s, fmt.Errorf("could not add relay sink: %v", err)
		}
	}

	return &s, nil
}

// GetEventDistributor returns the event distributor channel
func (s *SinkManager) GetEventDistributor() chan types.EngineEvent {
	return s.EventDistributor
}

// AddSink adds a new SinkEngine of name sinkName to our SinkManager object
func (s *SinkManager) AddSink(ctx context.Context, wg *sync.WaitGroup, sinkName string, c *config.SinkData) error {
	var err error

	switch sinkName {
	case "triplog":
		se := SinkEngine{}
		se.Sink, err = triplog.New(ctx, c.TripLog)
		if err != nil {
			return err
		}
		se.C = se.Sink.StartEventSink(ctx, wg)
		s.Sinks = append(s.Sinks, se)
	case "timescaledb":
		se := SinkEngine{}
		se.Sink, err = timescaledb.New(ctx, c.TimescaleDB)
		if err != nil {
			return err
		}
		se.C = se.Sink.StartEventSink(ctx, wg)
		s.Sinks = append(s.Sinks, se)
	case "relay":
		se := SinkEngine{}
		se.Sink, err = relay.New(c.Relay)
		if err != nil {
			return err
		}
		se.C = se.Sink.StartEventSink(ctx, wg)
		s.Sinks = append(s.Sinks, se)
	}

	return nil
}

// Subscribe returns a channel that receives every distributed event.
// Subscribers that stop draining lose events rather than stalling the
// distributor.
func (s *SinkManager) Subscribe(buffer int) <-chan types.EngineEvent {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan types.EngineEvent, buffer)
	s.subscribersMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subscribersMu.Unlock()
	return ch
}

// startEventDistributor receives events from the engine runner and fans
// them out to the various sinks and subscribers
func (s *SinkManager) startEventDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case ev := <-s.EventDistributor:
			for _, e := range s.Sinks {
				e.C <- ev
			}

			s.subscribersMu.Lock()
			for _, sub := range s.subscribers {
				select {
				case sub <- ev:
				default:
				}
			}
			s.subscribersMu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
