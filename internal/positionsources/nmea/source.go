// Package nmea implements a position source that reads NMEA 0183
// sentences from a GNSS receiver attached over a serial port or TCP.
package nmea

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/positionsources"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	serial "github.com/tarm/goserial"
	"go.uber.org/zap"
)

// Source reads raw NMEA sentences from a receiver and turns them into
// position samples
type Source struct {
	ctx                 context.Context
	wg                  *sync.WaitGroup
	netConn             net.Conn
	rwc                 io.ReadWriteCloser
	config              config.DeviceData
	deviceName          string
	PositionDistributor chan types.PositionSample
	logger              *zap.SugaredLogger
	connecting          bool
	connectingMu        sync.RWMutex

	// VTG sentences carry speed and course without a position; they are
	// held here and attached to the next positional fix.
	pendingSpeedKmh   *float64
	pendingHeadingDeg *float64
}

// NewSource creates a new NMEA position source for the named device
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
		logger.Fatalf("NMEA source [%s] failed to load config: %v", deviceName, err)
	}

	var deviceConfig *config.DeviceData
	for _, device := range cfgData.Devices {
		if device.Name == deviceName {
			deviceConfig = &device
			break
		}
	}

	if deviceConfig == nil {
		logger.Fatalf("NMEA source [%s] device not found in configuration", deviceName)
	}

	source.config = *deviceConfig

	if source.config.SerialDevice == "" && (source.config.Hostname == "" || source.config.Port == "") {
		logger.Fatalf("NMEA source [%s] must define either a serial device or hostname+port", source.config.Name)
	}

	// 9600 baud is the NMEA 0183 default; u-blox receivers running at
	// higher rates should set baud in the config.
	if source.config.Baud == 0 {
		source.config.Baud = 9600
	}

	return source
}

func (s *Source) SourceName() string {
	return s.config.Name
}

// StartPositionSource connects to the receiver and launches the sentence
// reader goroutine
func (s *Source) StartPositionSource() error {
	log.Infof("Starting NMEA position source [%v]...", s.config.Name)

	s.Connect()

	s.wg.Add(1)
	go s.readSentences()

	return nil
}

// readSentences runs the sentence parser, reconnecting if the stream
// errors out.
func (s *Source) readSentences() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling NMEA sentence reader")
			return
		default:
			err := s.parseSentenceStream()
			if err != nil {
				s.logger.Error(err)
				if s.rwc != nil {
					s.rwc.Close()
				}
				s.logger.Info("attempting to reconnect...")
				s.Connect()
			} else {
				return
			}
		}
	}
}

// parseSentenceStream reads sentences line by line, converts them to
// position samples, and sends them to the distributor.
func (s *Source) parseSentenceStream() error {
	scanner := bufio.NewScanner(s.rwc)

	for scanner.Scan() {
		if s.netConn != nil {
			s.netConn.SetReadDeadline(time.Now().Add(time.Second * 30))
		}
		select {
		case <-s.ctx.Done():
			log.Info("cancellation request received. Cancelling NMEA sentence reader")
			return nil
		default:
			fix, err := parseSentence(scanner.Text())
			if err != nil {
				log.Debugf("NMEA [%s] skipping sentence: %v", s.config.Name, err)
				continue
			}
			if fix == nil {
				continue
			}

			if !fix.HasPosition {
				if fix.SpeedKmh != nil {
					s.pendingSpeedKmh = fix.SpeedKmh
				}
				if fix.HeadingDeg != nil {
					s.pendingHeadingDeg = fix.HeadingDeg
				}
				continue
			}

			sample := types.PositionSample{
				Lat:         fix.Lat,
				Lon:         fix.Lon,
				SpeedKmh:    fix.SpeedKmh,
				HeadingDeg:  fix.HeadingDeg,
				TimestampMs: time.Now().UnixMilli(),
				SourceName:  s.config.Name,
			}
			if sample.SpeedKmh == nil {
				sample.SpeedKmh = s.pendingSpeedKmh
			}
			if sample.HeadingDeg == nil {
				sample.HeadingDeg = s.pendingHeadingDeg
			}
			s.pendingSpeedKmh = nil
			s.pendingHeadingDeg = nil

			log.Debugf("NMEA [%s] sending sample to distributor: lat=%.5f lon=%.5f",
				s.config.Name, sample.Lat, sample.Lon)
			s.PositionDistributor <- sample
		}
	}

	return fmt.Errorf("NMEA stream ended due to error or EOF")
}

// Connect connects to the receiver over serial or network
func (s *Source) Connect() {
	if len(s.config.SerialDevice) > 0 {
		s.connectSerial()
	} else if (len(s.config.Hostname) > 0) && (len(s.config.Port) > 0) {
		s.connectNetwork()
	} else {
		s.logger.Fatal("must provide either network hostname+port or serial device in config")
	}
}

func (s *Source) connectSerial() {
	var err error

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

	s.logger.Infof("connecting to %v ...", s.config.SerialDevice)

	for {
		sc := &serial.Config{Name: s.config.SerialDevice, Baud: s.config.Baud}
		s.rwc, err = serial.OpenPort(sc)
		if err != nil {
			s.logger.Errorf("failed to open serial port %s: %v", s.config.SerialDevice, err)
			s.logger.Error("sleeping 30 seconds and trying again")

			select {
			case <-s.ctx.Done():
				s.logger.Info("cancellation request received during retry wait")
				s.connectingMu.Lock()
				s.connecting = false
				s.connectingMu.Unlock()
				return
			case <-time.After(30 * time.Second):
			}
		} else {
			s.connectingMu.Lock()
			s.connecting = false
			s.connectingMu.Unlock()
			return
		}
	}
}

func (s *Source) connectNetwork() {
	var err error

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
	s.logger.Infof("connecting to %v ...", address)

	for {
		s.netConn, err = net.DialTimeout("tcp", address, 10*time.Second)
		if err != nil {
			s.logger.Errorf("could not connect to %v: %v", address, err)
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
			s.rwc = s.netConn
			s.connectingMu.Lock()
			s.connecting = false
			s.connectingMu.Unlock()
			return
		}
	}
}
