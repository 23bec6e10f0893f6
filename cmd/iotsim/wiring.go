package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iotsim/internal/api"
	"github.com/nerrad567/iotsim/internal/automation"
	"github.com/nerrad567/iotsim/internal/device"
	"github.com/nerrad567/iotsim/internal/infrastructure/config"
	"github.com/nerrad567/iotsim/internal/infrastructure/database"
	"github.com/nerrad567/iotsim/internal/infrastructure/influxdb"
	"github.com/nerrad567/iotsim/internal/infrastructure/logging"
	"github.com/nerrad567/iotsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/iotsim/internal/telemetry"
)

// healthCheckTimeout bounds the startup sink health check.
const healthCheckTimeout = 5 * time.Second

// sinks holds the optional export sinks opened at startup.
type sinks struct {
	log     *logging.Logger
	db      *database.DB
	journal device.Journal
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	cancel  context.CancelFunc
}

// buildSystem creates the automation system and discovers the configured devices.
func buildSystem(cfg *config.Config, log *logging.Logger) (*automation.System, error) {
	strategy, err := device.ParseStrategy(cfg.Simulator.Strategy)
	if err != nil {
		return nil, fmt.Errorf("simulator strategy: %w", err)
	}

	opts := []automation.Option{
		automation.WithStrategy(strategy),
		automation.WithLogger(log.With("component", "automation")),
		automation.WithMotionLights(cfg.Simulator.MotionLights),
	}
	if cfg.Simulator.Seed != 0 {
		opts = append(opts, automation.WithSeed(cfg.Simulator.Seed))
	}
	sys := automation.NewSystem(opts...)

	devices, err := buildDevices(cfg.Devices)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if err := sys.Discover(d); err != nil {
			return nil, fmt.Errorf("discovering %q: %w", d.ID(), err)
		}
	}

	log.Info("devices discovered",
		"devices", len(devices),
		"strategy", strategy,
		"seed", cfg.Simulator.Seed,
	)
	return sys, nil
}

// buildDevices creates devices from their config entries. Absent status and
// attributes fall back to the device defaults.
func buildDevices(entries []config.DeviceConfig) ([]device.Device, error) {
	devices := make([]device.Device, 0, len(entries))
	for i, e := range entries {
		d, err := buildDevice(e)
		if err != nil {
			return nil, fmt.Errorf("devices[%d] %q: %w", i, e.ID, err)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func buildDevice(e config.DeviceConfig) (device.Device, error) {
	status := device.DefaultStatus
	if e.Status != "" {
		s, err := device.ParseStatus(e.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}

	kind, err := device.ParseKind(e.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case device.KindSmartLight:
		brightness := device.DefaultBrightness
		if e.Brightness != nil {
			brightness = *e.Brightness
		}
		return device.NewSmartLight(e.ID, status, brightness)

	case device.KindThermostat:
		temperature := device.DefaultTemperature
		if e.Temperature != nil {
			temperature = *e.Temperature
		}
		return device.NewThermostat(e.ID, status, temperature)

	case device.KindSecurityCamera:
		security := device.DefaultSecurityStatus
		if e.SecurityStatus != "" {
			s, err := device.ParseSecurityStatus(e.SecurityStatus)
			if err != nil {
				return nil, err
			}
			security = s
		}
		return device.NewSecurityCamera(e.ID, status, security)
	}
	return nil, fmt.Errorf("%w: unhandled kind %q", device.ErrInvalidArgument, kind)
}

// openSinks connects every enabled export sink and registers them on sys
// behind one Fanout. On error, sinks opened so far are closed.
func openSinks(ctx context.Context, cfg *config.Config, sys *automation.System, log *logging.Logger) (*sinks, error) {
	s := &sinks{log: log}
	var listeners []automation.Listener

	if cfg.Database.Enabled {
		recorder, err := s.openJournal(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		listeners = append(listeners, recorder)
	}

	if cfg.MQTT.Enabled {
		publisher, err := s.openMQTT(cfg, sys)
		if err != nil {
			s.Close()
			return nil, err
		}
		listeners = append(listeners, publisher)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		writer, err := s.openInfluxDB(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		listeners = append(listeners, writer)
	} else {
		log.Info("InfluxDB disabled")
	}

	if fanout := telemetry.NewFanout(log.With("component", "telemetry"), listeners...); fanout.Len() > 0 {
		sys.AddListener(fanout)
	}
	return s, nil
}

func (s *sinks) openJournal(ctx context.Context, cfg *config.Config) (*telemetry.JournalRecorder, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db
	s.log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.log.Info("database migrations complete")

	journal := device.NewSQLiteJournal(db.DB)
	s.journal = journal
	recorder := telemetry.NewJournalRecorder(journal, s.log.With("component", "journal"))

	pruneCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go recorder.RunPruner(pruneCtx, cfg.GetRetention(), cfg.GetPruneInterval())

	return recorder, nil
}

func (s *sinks) openMQTT(cfg *config.Config, sys *automation.System) (*telemetry.MQTTPublisher, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	s.mqtt = client
	client.SetLogger(s.log.With("component", "mqtt"))
	s.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	if cfg.MQTT.Commands {
		handler := telemetry.NewCommandHandler(sys, s.log.With("component", "mqtt_commands"))
		topic := mqtt.Topics{}.AllDeviceSets()
		if err := client.Subscribe(topic, client.QoS(), handler.Handle); err != nil {
			return nil, fmt.Errorf("subscribing to device commands: %w", err)
		}
		s.log.Info("MQTT device commands enabled", "topic", topic)
	}

	return telemetry.NewMQTTPublisher(client, client.QoS(), s.log.With("component", "mqtt")), nil
}

func (s *sinks) openInfluxDB(cfg *config.Config) (*telemetry.InfluxWriter, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	s.influx = client
	client.SetOnError(func(err error) {
		s.log.Error("InfluxDB write error", "error", err)
	})
	s.log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return telemetry.NewInfluxWriter(client), nil
}

// Close shuts the sinks down in reverse order of opening.
func (s *sinks) Close() {
	if s.influx != nil {
		s.log.Info("closing InfluxDB connection")
		if err := s.influx.Close(); err != nil {
			s.log.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.mqtt != nil {
		for _, topic := range s.mqtt.Subscriptions() {
			if err := s.mqtt.Unsubscribe(topic); err != nil {
				s.log.Warn("error unsubscribing from MQTT", "topic", topic, "error", err)
			}
		}
		s.log.Info("disconnecting from MQTT")
		if err := s.mqtt.Close(); err != nil {
			s.log.Error("error closing MQTT", "error", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.db != nil {
		s.log.Info("closing database")
		if err := s.db.Close(); err != nil {
			s.log.Error("error closing database", "error", err)
		}
	}
}

// healthCheck verifies every open sink, joining all failures.
func (s *sinks) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var errs []error
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

// The accessors below return untyped nils for disabled sinks so the API
// sees them as absent.

func (s *sinks) mqttStatus() api.ConnectionStatus {
	if s.mqtt == nil {
		return nil
	}
	return s.mqtt
}

func (s *sinks) influxStatus() api.ConnectionStatus {
	if s.influx == nil {
		return nil
	}
	return s.influx
}

func (s *sinks) dbStats() api.DBStatsProvider {
	if s.db == nil {
		return nil
	}
	return s.db
}
