// Package udp implements a position source that accepts JSON position
// datagrams over UDP, typically from a phone running a GPS forwarder app
// on the car's hotspot network.
package udp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/panjf2000/gnet/v2"
	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/positionsources"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

// Source listens for position datagrams and forwards them as samples
type Source struct {
	gnet.BuiltinEventEngine

	ctx                 context.Context
	wg                  *sync.WaitGroup
	eng                 gnet.Engine
	config              config.DeviceData
	deviceName          string
	PositionDistributor chan types.PositionSample
	logger              *zap.SugaredLogger
}

// datagram is one JSON position report. Speed and heading are optional;
// forwarder apps omit them when the phone has no motion estimate. A
// sender may stamp its own timestamp_ms, which route replays rely on to
// keep the engine's time-based state faithful.
type datagram struct {
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	SpeedKmh    *float64 `json:"speed_kmh"`
	HeadingDeg  *float64 `json:"heading_deg"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// parseDatagram validates one datagram and converts it to a sample.
// Coordinates must be finite and in range; the arrival time is used only
// when the sender did not stamp the report itself.
func parseDatagram(buf []byte, sourceName string, arrivalMs int64) (types.PositionSample, error) {
	var d datagram
	if err := json.Unmarshal(buf, &d); err != nil {
		return types.PositionSample{}, err
	}
	if !coordInRange(d.Lat, 90) || !coordInRange(d.Lon, 180) {
		return types.PositionSample{}, fmt.Errorf("coordinates missing or out of range")
	}

	ts := d.TimestampMs
	if ts <= 0 {
		ts = arrivalMs
	}

	return types.PositionSample{
		Lat:         *d.Lat,
		Lon:         *d.Lon,
		SpeedKmh:    d.SpeedKmh,
		HeadingDeg:  d.HeadingDeg,
		TimestampMs: ts,
		SourceName:  sourceName,
	}, nil
}

func coordInRange(v *float64, bound float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= -bound && *v <= bound
}

// NewSource creates a new UDP position source for the named device
func NewSource(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, deviceName string, distributor chan types.PositionSample, logger *zap.SugaredLogger) positionsources.PositionSource {
	source := &Source{
		ctx:                 ctx,
		wg:                  wg,
		deviceName:          deviceName,
		PositionDistributor: distributor,
		logger:              logger,
	}

	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		logger.Fatalf("UDP source [%s] failed to load config: %v", deviceName, err)
	}

	var deviceConfig *config.DeviceData
	for _, device := range cfgData.Devices {
		if device.Name == deviceName {
			deviceConfig = &device
			break
		}
	}

	if deviceConfig == nil {
		logger.Fatalf("UDP source [%s] device not found in configuration", deviceName)
	}

	source.config = *deviceConfig

	if source.config.ListenAddr == "" {
		source.config.ListenAddr = ":5598"
	}

	return source
}

func (s *Source) SourceName() string {
	return s.config.Name
}

// StartPositionSource launches the UDP event loop and a watcher that
// stops it on shutdown
func (s *Source) StartPositionSource() error {
	log.Infof("Starting UDP position source [%v] on %v...", s.config.Name, s.config.ListenAddr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := gnet.Run(s, "udp://"+s.config.ListenAddr, gnet.WithMulticore(false))
		if err != nil {
			s.logger.Errorf("UDP source [%s] event loop exited: %v", s.config.Name, err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		log.Info("cancellation request received. Stopping UDP event loop")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.eng.Stop(shutdownCtx)
	}()

	return nil
}

// OnBoot stashes the engine handle so the shutdown watcher can stop it.
func (s *Source) OnBoot(eng gnet.Engine) gnet.Action {
	s.eng = eng
	return gnet.None
}

// OnTraffic decodes one datagram per packet. Malformed datagrams are
// dropped; UDP gives no way to complain to the sender anyway.
func (s *Source) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Next(-1)
	if err != nil {
		return gnet.None
	}

	sample, err := parseDatagram(buf, s.config.Name, time.Now().UnixMilli())
	if err != nil {
		log.Debugf("UDP [%s] dropping datagram: %v", s.config.Name, err)
		return gnet.None
	}

	select {
	case s.PositionDistributor <- sample:
	case <-s.ctx.Done():
	}

	return gnet.None
}
