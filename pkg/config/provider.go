// Package config defines the roadwatch configuration schema and its
// providers.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDevices() ([]DeviceData, error)
	GetEngine() (*EngineData, error)
	GetFeed() (*FeedData, error)
	GetSinks() (*SinkData, error)
	GetControllers() ([]ControllerData, error)

	// Configuration management
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Devices     []DeviceData     `json:"devices"`
	Feed        FeedData         `json:"feed"`
	Engine      EngineData       `json:"engine,omitempty"`
	Sinks       SinkData         `json:"sinks,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// DeviceData holds configuration specific to position sources
type DeviceData struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Enabled      bool   `json:"enabled"`
	Hostname     string `json:"hostname,omitempty"`
	Port         string `json:"port,omitempty"`
	SerialDevice string `json:"serial_device,omitempty"`
	Baud         int    `json:"baud,omitempty"`
	ListenAddr   string `json:"listen_addr,omitempty"`
}

// FeedData holds configuration for the hazard feed loader
type FeedData struct {
	URL                  string `json:"url,omitempty"`
	Path                 string `json:"path,omitempty"`
	ReloadIntervalSecs   int    `json:"reload_interval_secs,omitempty"`
	RequestTimeoutSecs   int    `json:"request_timeout_secs,omitempty"`
	DefaultSpeedUnit     string `json:"default_speed_unit,omitempty"`
	FailOnEmptyCatalog   bool   `json:"fail_on_empty_catalog,omitempty"`
	MaxRecordSkipPercent int    `json:"max_record_skip_percent,omitempty"`
}

// EngineData holds the proximity engine thresholds. Omitted values fall
// back to the engine defaults.
type EngineData struct {
	CameraVisibleRadiusM float64 `json:"camera_visible_radius_m,omitempty"`
	AlertDistanceM       float64 `json:"alert_distance_m,omitempty"`
	PerHazardThrottleMs  int64   `json:"per_hazard_throttle_ms,omitempty"`
	GlobalThrottleMs     int64   `json:"global_throttle_ms,omitempty"`
	AheadAngleDeg        float64 `json:"ahead_angle_deg,omitempty"`
	ZoneGapEpsilonM      float64 `json:"zone_gap_epsilon_m,omitempty"`
	ZoneOverrunEpsilonM  float64 `json:"zone_overrun_epsilon_m,omitempty"`
	ZoneSpeedSampleCap   int     `json:"zone_speed_sample_cap,omitempty"`
}

// SinkData holds the configuration for various event sinks
type SinkData struct {
	TripLog     *TripLogData     `json:"triplog,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	Relay       *RelayData       `json:"relay,omitempty"`
}

// TripLogData configures the local SQLite trip journal
type TripLogData struct {
	Path string `json:"path"`
}

// TimescaleDBData configures the TimescaleDB event archive
type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// RelayData configures the msgpack event relay for display clients
type RelayData struct {
	ListenAddr string `json:"listen_addr"`
}

// ControllerData holds the configuration for controller backends
type ControllerData struct {
	Type         string            `json:"type,omitempty"`
	StatusServer *StatusServerData `json:"status,omitempty"`
}

// StatusServerData configures the REST status server
type StatusServerData struct {
	Cert        string `json:"cert,omitempty"`
	Key         string `json:"key,omitempty"`
	Port        int    `json:"port,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty"`
	EnableCORS  bool   `json:"enable_cors,omitempty"`
	EventBuffer int    `json:"event_buffer,omitempty"`
}
