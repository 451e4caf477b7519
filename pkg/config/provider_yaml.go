package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Devices     []DeviceYAML     `yaml:"devices"`
		Feed        FeedYAML         `yaml:"feed"`
		Engine      EngineYAML       `yaml:"engine,omitempty"`
		Sinks       SinkYAML         `yaml:"sinks,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Devices:     make([]DeviceData, len(yamlConfig.Devices)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, device := range yamlConfig.Devices {
		config.Devices[i] = DeviceData{
			Name:         device.Name,
			Type:         device.Type,
			Enabled:      device.Enabled,
			Hostname:     device.Hostname,
			Port:         device.Port,
			SerialDevice: device.SerialDevice,
			Baud:         device.Baud,
			ListenAddr:   device.ListenAddr,
		}
	}

	config.Feed = FeedData{
		URL:                  yamlConfig.Feed.URL,
		Path:                 yamlConfig.Feed.Path,
		ReloadIntervalSecs:   yamlConfig.Feed.ReloadIntervalSecs,
		RequestTimeoutSecs:   yamlConfig.Feed.RequestTimeoutSecs,
		DefaultSpeedUnit:     yamlConfig.Feed.DefaultSpeedUnit,
		FailOnEmptyCatalog:   yamlConfig.Feed.FailOnEmptyCatalog,
		MaxRecordSkipPercent: yamlConfig.Feed.MaxRecordSkipPercent,
	}

	config.Engine = EngineData{
		CameraVisibleRadiusM: yamlConfig.Engine.CameraVisibleRadiusM,
		AlertDistanceM:       yamlConfig.Engine.AlertDistanceM,
		PerHazardThrottleMs:  yamlConfig.Engine.PerHazardThrottleMs,
		GlobalThrottleMs:     yamlConfig.Engine.GlobalThrottleMs,
		AheadAngleDeg:        yamlConfig.Engine.AheadAngleDeg,
		ZoneGapEpsilonM:      yamlConfig.Engine.ZoneGapEpsilonM,
		ZoneOverrunEpsilonM:  yamlConfig.Engine.ZoneOverrunEpsilonM,
		ZoneSpeedSampleCap:   yamlConfig.Engine.ZoneSpeedSampleCap,
	}

	config.Sinks = SinkData{}
	if yamlConfig.Sinks.TripLog != nil {
		config.Sinks.TripLog = &TripLogData{
			Path: yamlConfig.Sinks.TripLog.Path,
		}
	}
	if yamlConfig.Sinks.TimescaleDB != nil {
		config.Sinks.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Sinks.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Sinks.Relay != nil {
		config.Sinks.Relay = &RelayData{
			ListenAddr: yamlConfig.Sinks.Relay.ListenAddr,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.StatusServer != nil {
			config.Controllers[i].StatusServer = &StatusServerData{
				Cert:        controller.StatusServer.Cert,
				Key:         controller.StatusServer.Key,
				Port:        controller.StatusServer.Port,
				ListenAddr:  controller.StatusServer.ListenAddr,
				EnableCORS:  controller.StatusServer.EnableCORS,
				EventBuffer: controller.StatusServer.EventBuffer,
			}
		}
	}

	y.config = config
	return config, nil
}

// GetDevices returns device configurations
func (y *YAMLProvider) GetDevices() ([]DeviceData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return y.config.Devices, nil
}

// GetEngine returns the engine threshold configuration
func (y *YAMLProvider) GetEngine() (*EngineData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Engine, nil
}

// GetFeed returns the hazard feed configuration
func (y *YAMLProvider) GetFeed() (*FeedData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Feed, nil
}

// GetSinks returns sink configuration
func (y *YAMLProvider) GetSinks() (*SinkData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Sinks, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return y.config.Controllers, nil
}

func (y *YAMLProvider) ensureLoaded() error {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return err
		}
	}
	return nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the file format
type DeviceYAML struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type,omitempty"`
	Enabled      bool   `yaml:"enabled"`
	Hostname     string `yaml:"hostname,omitempty"`
	Port         string `yaml:"port,omitempty"`
	SerialDevice string `yaml:"serialdevice,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	ListenAddr   string `yaml:"listen-addr,omitempty"`
}

type FeedYAML struct {
	URL                  string `yaml:"url,omitempty"`
	Path                 string `yaml:"path,omitempty"`
	ReloadIntervalSecs   int    `yaml:"reload-interval-secs,omitempty"`
	RequestTimeoutSecs   int    `yaml:"request-timeout-secs,omitempty"`
	DefaultSpeedUnit     string `yaml:"default-speed-unit,omitempty"`
	FailOnEmptyCatalog   bool   `yaml:"fail-on-empty-catalog,omitempty"`
	MaxRecordSkipPercent int    `yaml:"max-record-skip-percent,omitempty"`
}

type EngineYAML struct {
	CameraVisibleRadiusM float64 `yaml:"camera-visible-radius-m,omitempty"`
	AlertDistanceM       float64 `yaml:"alert-distance-m,omitempty"`
	PerHazardThrottleMs  int64   `yaml:"per-hazard-throttle-ms,omitempty"`
	GlobalThrottleMs     int64   `yaml:"global-throttle-ms,omitempty"`
	AheadAngleDeg        float64 `yaml:"ahead-angle-deg,omitempty"`
	ZoneGapEpsilonM      float64 `yaml:"zone-gap-epsilon-m,omitempty"`
	ZoneOverrunEpsilonM  float64 `yaml:"zone-overrun-epsilon-m,omitempty"`
	ZoneSpeedSampleCap   int     `yaml:"zone-speed-sample-cap,omitempty"`
}

type SinkYAML struct {
	TripLog     *TripLogYAML     `yaml:"triplog,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	Relay       *RelayYAML       `yaml:"relay,omitempty"`
}

type TripLogYAML struct {
	Path string `yaml:"path"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type RelayYAML struct {
	ListenAddr string `yaml:"listen-addr"`
}

type ControllerYAML struct {
	Type         string            `yaml:"type,omitempty"`
	StatusServer *StatusServerYAML `yaml:"status,omitempty"`
}

type StatusServerYAML struct {
	Cert        string `yaml:"cert,omitempty"`
	Key         string `yaml:"key,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	ListenAddr  string `yaml:"listen-addr,omitempty"`
	EnableCORS  bool   `yaml:"enable-cors,omitempty"`
	EventBuffer int    `yaml:"event-buffer,omitempty"`
}
