package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
simulator:
  id: "test-sim"
  strategy: "resample"
  seed: 42
  initial_iterations: 5
  interval: 2
devices:
  - id: "Hall Light"
    kind: "smart_light"
    status: "on"
    brightness: 40
  - id: "Office Thermostat"
    kind: "thermostat"
    temperature: 19.5
database:
  enabled: true
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
  qos: 1
api:
  port: 9090
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Simulator.ID != "test-sim" {
		t.Errorf("Simulator.ID = %q, want %q", cfg.Simulator.ID, "test-sim")
	}
	if cfg.Simulator.Strategy != StrategyResample {
		t.Errorf("Simulator.Strategy = %q, want %q", cfg.Simulator.Strategy, StrategyResample)
	}
	if cfg.Simulator.Seed != 42 {
		t.Errorf("Simulator.Seed = %d, want 42", cfg.Simulator.Seed)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Brightness == nil || *cfg.Devices[0].Brightness != 40 {
		t.Errorf("Devices[0].Brightness = %v, want 40", cfg.Devices[0].Brightness)
	}
	if cfg.Devices[1].Temperature == nil || *cfg.Devices[1].Temperature != 19.5 {
		t.Errorf("Devices[1].Temperature = %v, want 19.5", cfg.Devices[1].Temperature)
	}
	if cfg.Devices[1].Brightness != nil {
		t.Error("Devices[1].Brightness should be nil for a thermostat")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want %q", cfg.WebSocket.Path, "/ws")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
simulator:
  id: ""
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty simulator.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "valid JWT secret",
			mutate: func(c *Config) { c.Security.JWT.Secret = validJWTSecret },
		},
		{
			name:    "missing simulator ID",
			mutate:  func(c *Config) { c.Simulator.ID = "" },
			wantErr: "simulator.id",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Simulator.Strategy = "chaos" },
			wantErr: "simulator.strategy",
		},
		{
			name:    "negative initial iterations",
			mutate:  func(c *Config) { c.Simulator.InitialIterations = -1 },
			wantErr: "initial_iterations",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Simulator.Interval = -5 },
			wantErr: "simulator.interval",
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "Living Room Light", Kind: KindSmartLight})
			},
			wantErr: "duplicated",
		},
		{
			name: "blank device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "  ", Kind: KindSmartLight})
			},
			wantErr: "id is required",
		},
		{
			name: "unknown device kind",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{ID: "Toaster", Kind: "toaster"})
			},
			wantErr: "not supported",
		},
		{
			name: "invalid device status",
			mutate: func(c *Config) {
				c.Devices[0].Status = "dimmed"
			},
			wantErr: "status must be on or off",
		},
		{
			name: "database enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "influxdb enabled without bucket",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = ""
			},
			wantErr: "influxdb.org",
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Simulator.ID = ""
	cfg.MQTT.QoS = 9

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "simulator.id") || !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("Validate() error = %v, want both problems reported", err)
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := &Config{
		Simulator: SimulatorConfig{Interval: 5},
		History:   HistoryConfig{RetentionDays: 2, PruneInterval: 15},
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetSimulationInterval(); got != 5*time.Second {
		t.Errorf("GetSimulationInterval() = %v, want 5s", got)
	}
	if got := cfg.GetPruneInterval(); got != 15*time.Minute {
		t.Errorf("GetPruneInterval() = %v, want 15m", got)
	}
	if got := cfg.GetRetention(); got != 48*time.Hour {
		t.Errorf("GetRetention() = %v, want 48h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("IOTSIM_SEED", "1234")
	t.Setenv("IOTSIM_STRATEGY", "resample")
	t.Setenv("IOTSIM_DATABASE_PATH", "/custom/path.db")
	t.Setenv("IOTSIM_MQTT_HOST", "mqtt.example.com")
	t.Setenv("IOTSIM_MQTT_USERNAME", "testuser")
	t.Setenv("IOTSIM_MQTT_PASSWORD", "testpass")
	t.Setenv("IOTSIM_API_HOST", "192.168.1.1")
	t.Setenv("IOTSIM_API_PORT", "9999")
	t.Setenv("IOTSIM_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("IOTSIM_LOG_LEVEL", "debug")
	t.Setenv("IOTSIM_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Simulator.Seed != 1234 {
		t.Errorf("Simulator.Seed = %d, want 1234", cfg.Simulator.Seed)
	}
	if cfg.Simulator.Strategy != "resample" {
		t.Errorf("Simulator.Strategy = %q, want %q", cfg.Simulator.Strategy, "resample")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	cfg := Default()

	t.Setenv("IOTSIM_SEED", "not-a-number")
	t.Setenv("IOTSIM_API_PORT", "eighty")

	applyEnvOverrides(cfg)

	if cfg.Simulator.Seed != 0 {
		t.Errorf("Simulator.Seed = %d, want 0", cfg.Simulator.Seed)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.Devices) != 3 {
		t.Fatalf("Default() should bootstrap 3 devices, got %d", len(cfg.Devices))
	}
	wantKinds := []string{KindSmartLight, KindThermostat, KindSecurityCamera}
	for i, want := range wantKinds {
		if cfg.Devices[i].Kind != want {
			t.Errorf("Devices[%d].Kind = %q, want %q", i, cfg.Devices[i].Kind, want)
		}
	}
	if cfg.Simulator.InitialIterations != 3 {
		t.Errorf("Simulator.InitialIterations = %d, want 3", cfg.Simulator.InitialIterations)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled || cfg.Database.Enabled {
		t.Error("Default() should leave export sinks disabled")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	configPath := writeConfig(t, "simulator:\n  interval: 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	if err := Watch(ctx, configPath, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}, nil); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(configPath, []byte("simulator:\n  interval: 9\n"), 0600); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	// A truncating write can surface as several events; wait for the final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Simulator.Interval == 9 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

func TestWatch_ReportsInvalidReload(t *testing.T) {
	configPath := writeConfig(t, "simulator:\n  interval: 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 16)
	if err := Watch(ctx, configPath, func(*Config) {}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(configPath, []byte("simulator:\n  strategy: chaos\n"), 0600); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case err := <-errs:
		if !strings.Contains(err.Error(), "simulator.strategy") {
			t.Errorf("error = %v, want strategy validation error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}
