package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/roadwatch/roadwatch/internal/positionsources"
	"github.com/roadwatch/roadwatch/internal/positionsources/gpsd"
	"github.com/roadwatch/roadwatch/internal/positionsources/nmea"
	"github.com/roadwatch/roadwatch/internal/positionsources/udp"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

// SourceManager owns the configured position sources
type SourceManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	distributor    chan types.PositionSample
	logger         *zap.SugaredLogger
	sources        map[string]positionsources.PositionSource
}

// NewSourceManager creates a SourceManager object, populated with all
// configured and enabled position sources
func NewSourceManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, distributor chan types.PositionSample, logger *zap.SugaredLogger) (*SourceManager, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	sm := &SourceManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		distributor:    distributor,
		logger:         logger,
		sources:        make(map[string]positionsources.PositionSource),
	}

	for _, deviceConfig := range cfgData.Devices {
		if !deviceConfig.Enabled {
			logger.Infof("Skipping disabled device [%s]", deviceConfig.Name)
			continue
		}
		source, err := sm.createSourceFromConfig(deviceConfig)
		if err != nil {
			return nil, fmt.Errorf("error creating position source [%s]: %w", deviceConfig.Name, err)
		}
		sm.sources[deviceConfig.Name] = source
	}

	if len(sm.sources) == 0 {
		return nil, fmt.Errorf("no enabled position sources in configuration")
	}

	return sm, nil
}

// StartPositionSources starts every managed source
func (sm *SourceManager) StartPositionSources() error {
	for name, source := range sm.sources {
		sm.logger.Infof("Starting position source [%v]...", name)
		if err := source.StartPositionSource(); err != nil {
			return fmt.Errorf("failed to start position source [%s]: %w", name, err)
		}
	}
	return nil
}

// SourceNames lists the managed sources for status reporting
func (sm *SourceManager) SourceNames() []string {
	names := make([]string, 0, len(sm.sources))
	for name := range sm.sources {
		names = append(names, name)
	}
	return names
}

func (sm *SourceManager) createSourceFromConfig(device config.DeviceData) (positionsources.PositionSource, error) {
	switch device.Type {
	case "nmea":
		return nmea.NewSource(sm.ctx, sm.wg, sm.configProvider, device.Name, sm.distributor, sm.logger), nil
	case "gpsd":
		return gpsd.NewSource(sm.ctx, sm.wg, sm.configProvider, device.Name, sm.distributor, sm.logger), nil
	case "udp":
		return udp.NewSource(sm.ctx, sm.wg, sm.configProvider, device.Name, sm.distributor, sm.logger), nil
	default:
		return nil, fmt.Errorf("unknown device type: %s", device.Type)
	}
}
