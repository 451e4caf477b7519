package managers

import (
	"context"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/engine"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

// EngineRunner owns the evaluation engine. All mutation happens on the
// runner's goroutine; readers get copies through the snapshot methods.
type EngineRunner struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	logger *zap.SugaredLogger

	SampleDistributor chan types.PositionSample
	catalogSwaps      chan catalogSwap
	events            chan<- types.EngineEvent

	mu              sync.RWMutex
	eng             *engine.Engine
	startedAt       time.Time
	samplesIngested uint64
	eventsEmitted   uint64
}

type catalogSwap struct {
	hazards   []types.HazardPoint
	corridors []types.AverageZoneCorridor
}

// NewEngineRunner creates an engine runner using the thresholds from the
// configuration, falling back to defaults for anything unset.
func NewEngineRunner(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, events chan<- types.EngineEvent, logger *zap.SugaredLogger) (*EngineRunner, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, err
	}

	opts := optionsFromConfig(cfgData.Engine)

	return &EngineRunner{
		ctx:               ctx,
		wg:                wg,
		logger:            logger,
		SampleDistributor: make(chan types.PositionSample, 20),
		catalogSwaps:      make(chan catalogSwap, 1),
		events:            events,
		eng:               engine.New(opts, engine.NewCatalog(nil, nil)),
	}, nil
}

func optionsFromConfig(c config.EngineData) engine.Options {
	opts := engine.DefaultOptions()
	if c.CameraVisibleRadiusM > 0 {
		opts.CameraVisibleRadiusM = c.CameraVisibleRadiusM
	}
	if c.AlertDistanceM > 0 {
		opts.AlertDistanceM = c.AlertDistanceM
	}
	if c.PerHazardThrottleMs > 0 {
		opts.PerHazardThrottleMs = c.PerHazardThrottleMs
	}
	if c.GlobalThrottleMs > 0 {
		opts.GlobalThrottleMs = c.GlobalThrottleMs
	}
	if c.AheadAngleDeg > 0 {
		opts.AheadAngleDeg = c.AheadAngleDeg
	}
	if c.ZoneGapEpsilonM > 0 {
		opts.ZoneGapEpsilonM = c.ZoneGapEpsilonM
	}
	if c.ZoneOverrunEpsilonM > 0 {
		opts.ZoneOverrunEpsilonM = c.ZoneOverrunEpsilonM
	}
	if c.ZoneSpeedSampleCap > 0 {
		opts.ZoneSpeedSampleCap = c.ZoneSpeedSampleCap
	}
	return opts
}

// GetSampleDistributor returns the channel position sources write into
func (r *EngineRunner) GetSampleDistributor() chan types.PositionSample {
	return r.SampleDistributor
}

// Start launches the evaluation loop
func (r *EngineRunner) Start() error {
	r.mu.Lock()
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()
	return nil
}

func (r *EngineRunner) run() {
	defer r.wg.Done()
	r.logger.Info("engine runner started")

	for {
		select {
		case sample := <-r.SampleDistributor:
			r.mu.Lock()
			events := r.eng.Ingest(sample)
			r.samplesIngested++
			r.eventsEmitted += uint64(len(events))
			r.mu.Unlock()
			r.publish(events)
		case swap := <-r.catalogSwaps:
			r.mu.Lock()
			events := r.eng.ReloadCatalog(swap.hazards, swap.corridors)
			r.eventsEmitted += uint64(len(events))
			r.mu.Unlock()
			r.publish(events)
		case <-r.ctx.Done():
			r.logger.Info("cancellation request received. Stopping engine runner.")
			return
		}
	}
}

func (r *EngineRunner) publish(events []types.EngineEvent) {
	for _, ev := range events {
		select {
		case r.events <- ev:
		case <-r.ctx.Done():
			return
		}
	}
}

// SubmitCatalog hands a new hazard snapshot to the evaluation loop. A
// pending unconsumed swap is replaced; only the newest catalog matters.
func (r *EngineRunner) SubmitCatalog(hazards []types.HazardPoint, corridors []types.AverageZoneCorridor) {
	swap := catalogSwap{hazards: hazards, corridors: corridors}
	for {
		select {
		case r.catalogSwaps <- swap:
			return
		default:
			select {
			case <-r.catalogSwaps:
			default:
			}
		}
	}
}

// Snapshot returns a copy of the current engine state
func (r *EngineRunner) Snapshot() engine.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eng.Snapshot()
}

// VisibleHazards returns the hazards inside the visibility window,
// nearest first
func (r *EngineRunner) VisibleHazards() []engine.VisibleHazard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eng.VisibleHazards()
}

// Stats returns the runner counters
func (r *EngineRunner) Stats() types.RunnerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.RunnerStats{
		StartedAt:       r.startedAt,
		SamplesIngested: r.samplesIngested,
		EventsEmitted:   r.eventsEmitted,
	}
}
