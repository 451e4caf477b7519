// Package gpsd implements a position source that watches a gpsd daemon
// over its JSON protocol.
package gpsd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/positionsources"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

// Source streams TPV reports from a gpsd daemon
type Source struct {
	ctx                 context.Context
	wg                  *sync.WaitGroup
	netConn             net.Conn
	config              config.DeviceData
	deviceName          string
	PositionDistributor chan types.PositionSample
	logger              *zap.SugaredLogger
	connecting          bool
	connectingMu        sync.RWMutex
}

// tpvReport is the subset of gpsd's TPV class we consume. Speed arrives
// in meters per second and track in true degrees.
type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Speed *float64 `json:"speed"`
	Track *float64 `json:"track"`
}

const watchCommand = `?WATCH={"enable":true,"json":true}` + "\n"

// NewSource creates a new gpsd position source for the named device
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
		logger.Fatalf("gpsd source [%s] failed to load config: %v", deviceName, err)
	}

	var deviceConfig *config.DeviceData
	for _, device := range cfgData.Devices {
		if device.Name == deviceName {
			deviceConfig = &device
			break
		}
	}

	if deviceConfig == nil {
		logger.Fatalf("gpsd source [%s] device not found in configuration", deviceName)
	}

	source.config = *deviceConfig

	if source.config.Hostname == "" {
		source.config.Hostname = "localhost"
	}
	if source.config.Port == "" {
		source.config.Port = "2947"
	}

	return source
}

func (s *Source) SourceName() string {
	return s.config.Name
}

// StartPositionSource connects to gpsd and launches the report reader
// goroutine
func (s *Source) StartPositionSource() error {
	log.Infof("Starting gpsd position source [%v]...", s.config.Name)

	s.Connect()

	s.wg.Add(1)
	go s.readReports()

	return nil
}

// readReports runs the TPV stream parser, reconnecting if the connection
// drops.
func (s *Source) readReports() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling gpsd report reader")
			return
		default:
			err := s.parseReportStream()
			if err != nil {
				s.logger.Error(err)
				if s.netConn != nil {
					s.netConn.Close()
				}
				s.logger.Info("attempting to reconnect...")
				s.Connect()
			} else {
				return
			}
		}
	}
}

// parseReportStream reads gpsd's newline-delimited JSON reports, converts
// TPV reports with a fix into position samples, and sends them to the
// distributor.
func (s *Source) parseReportStream() error {
	scanner := bufio.NewScanner(s.netConn)

	for scanner.Scan() {
		s.netConn.SetReadDeadline(time.Now().Add(time.Second * 30))
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling gpsd report reader")
			return nil
		default:
			var report tpvReport
			if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
				log.Debugf("gpsd [%s] skipping undecodable report: %v", s.config.Name, err)
				continue
			}

			// Mode 2 is a 2D fix, 3 is a 3D fix. Anything lower has no
			// usable position.
			if report.Class != "TPV" || report.Mode < 2 || report.Lat == nil || report.Lon == nil {
				continue
			}

			sample := types.PositionSample{
				Lat:         *report.Lat,
				Lon:         *report.Lon,
				HeadingDeg:  report.Track,
				TimestampMs: time.Now().UnixMilli(),
				SourceName:  s.config.Name,
			}
			if report.Speed != nil {
				kmh := *report.Speed * 3.6
				sample.SpeedKmh = &kmh
			}

			log.Debugf("gpsd [%s] sending sample to distributor: lat=%.5f lon=%.5f",
				s.config.Name, sample.Lat, sample.Lon)
			s.PositionDistributor <- sample
		}
	}

	return fmt.Errorf("gpsd stream ended due to error or EOF")
}

// Connect dials gpsd and issues the WATCH command that starts the JSON
// report stream.
func (s *Source) Connect() {
	s.connectingMu.RLock()
	if s.connecting {
		s.connectingMu.RUnlock()
		s.logger.Info("skipping reconnect since a connection attempt is already in progress")
		return
	}
	s.connectingMu.RUnlock()
	s.connectingMu.Lock()
	s.connecting = true
	s.connectingMu.Unlock()

	address := net.JoinHostPort(s.config.Hostname, s.config.Port)
	s.logger.Infof("connecting to gpsd at %v ...", address)

	for {
		var err error
		s.netConn, err = net.DialTimeout("tcp", address, 10*time.Second)
		if err == nil {
			_, err = s.netConn.Write([]byte(watchCommand))
		}

		if err != nil {
			s.logger.Errorf("could not start gpsd watch on %v: %v", address, err)
			s.logger.Error("sleeping 5 seconds and trying again")

			select {
			case <-s.ctx.Done():
				s.logger.Info("cancellation request received during retry wait")
				s.connectingMu.Lock()
				s.connecting = false
				s.connectingMu.Unlock()
				return
			case <-time.After(5 * time.Second):
			}
		} else {
			s.netConn.SetReadDeadline(time.Now().Add(time.Second * 30))
			s.connectingMu.Lock()
			s.connecting = false
			s.connectingMu.Unlock()
			return
		}
	}
}
