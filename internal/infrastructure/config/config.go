package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// Simulation strategies accepted by simulator.strategy.
const (
	StrategyDrift    = "drift"
	StrategyResample = "resample"
)

// Device kinds accepted by devices[].kind.
const (
	KindSmartLight     = "smart_light"
	KindThermostat     = "thermostat"
	KindSecurityCamera = "security_camera"
)

// SimulatorConfig controls the randomization loop.
type SimulatorConfig struct {
	ID string `yaml:"id"`
	// Strategy is "drift" (bounded random walk) or "resample" (full-range draw).
	Strategy string `yaml:"strategy"`
	// Seed fixes the random source. 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
	// InitialIterations is the number of passes run at bootstrap.
	InitialIterations int `yaml:"initial_iterations"`
	// Interval is the timer period in seconds. 0 disables the timer.
	Interval int `yaml:"interval"`
	// MotionLights turns every light on when a camera reports motion.
	MotionLights bool `yaml:"motion_lights"`
}

// DeviceConfig describes one device created at bootstrap.
// Only the attribute matching Kind is read; absent values use device defaults.
type DeviceConfig struct {
	ID             string   `yaml:"id"`
	Kind           string   `yaml:"kind"`
	Status         string   `yaml:"status,omitempty"`
	Brightness     *int     `yaml:"brightness,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	SecurityStatus string   `yaml:"security_status,omitempty"`
}

// DatabaseConfig contains SQLite settings for the snapshot journal.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls snapshot journal retention.
type HistoryConfig struct {
	RetentionDays int `yaml:"retention_days"`
	// PruneInterval is how often old entries are deleted, in minutes.
	PruneInterval int `yaml:"prune_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled bool `yaml:"enabled"`
	// Commands subscribes to iotsim/device/+/set so devices can be driven over MQTT.
	Commands  bool                `yaml:"commands"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP dashboard API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT settings. An empty secret leaves the API open.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// minJWTSecretLength applies only when a secret is configured.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IOTSIM_SECTION_KEY
// For example: IOTSIM_DATABASE_PATH, IOTSIM_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults: the three bootstrap
// devices, three initial passes and every export sink disabled.
func Default() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			ID:                "iotsim-01",
			Strategy:          StrategyDrift,
			InitialIterations: 3,
			Interval:          5,
			MotionLights:      true,
		},
		Devices: []DeviceConfig{
			{ID: "Living Room Light", Kind: KindSmartLight},
			{ID: "Living Room Thermostat", Kind: KindThermostat},
			{ID: "Front Door Camera", Kind: KindSecurityCamera},
		},
		Database: DatabaseConfig{
			Path:        "./data/iotsim.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			RetentionDays: 7,
			PruneInterval: 60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iotsim",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "iotsim",
			Bucket:        "devices",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOTSIM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Simulator
	if v := os.Getenv("IOTSIM_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Simulator.Seed = seed
		}
	}
	if v := os.Getenv("IOTSIM_STRATEGY"); v != "" {
		cfg.Simulator.Strategy = v
	}

	// Database
	if v := os.Getenv("IOTSIM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IOTSIM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IOTSIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IOTSIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("IOTSIM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IOTSIM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("IOTSIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("IOTSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security
	if v := os.Getenv("IOTSIM_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a single run reports all of them.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Simulator
	if c.Simulator.ID == "" {
		errs = append(errs, "simulator.id is required")
	}
	switch c.Simulator.Strategy {
	case StrategyDrift, StrategyResample:
	default:
		errs = append(errs, fmt.Sprintf("simulator.strategy must be %q or %q", StrategyDrift, StrategyResample))
	}
	if c.Simulator.InitialIterations < 0 {
		errs = append(errs, "simulator.initial_iterations must not be negative")
	}
	if c.Simulator.Interval < 0 {
		errs = append(errs, "simulator.interval must not be negative")
	}

	// Devices
	errs = append(errs, c.validateDevices()...)

	// Database
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, "history.retention_days must not be negative")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	// InfluxDB
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Logging
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	// Security: the secret is optional, but a configured one must not be weak.
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateDevices checks structural rules for the bootstrap device list.
// Attribute ranges are checked by the device constructors.
func (c *Config) validateDevices() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Devices))

	for i, d := range c.Devices {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
		} else if seen[id] {
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, id))
		}
		seen[id] = true

		switch d.Kind {
		case KindSmartLight, KindThermostat, KindSecurityCamera:
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].kind %q is not supported", i, d.Kind))
		}

		switch strings.ToLower(d.Status) {
		case "", "on", "off":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].status must be on or off", i))
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSimulationInterval returns the timer period. Zero means disabled.
func (c *Config) GetSimulationInterval() time.Duration {
	return time.Duration(c.Simulator.Interval) * time.Second
}

// GetPruneInterval returns how often the snapshot journal is pruned.
func (c *Config) GetPruneInterval() time.Duration {
	return time.Duration(c.History.PruneInterval) * time.Minute
}

// GetRetention returns how long journal entries are kept. Zero keeps everything.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}
