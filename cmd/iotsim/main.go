// iotsim - IoT device simulator
//
// iotsim simulates a small home: smart lights, thermostats and security
// cameras whose state is randomized by an automation loop. The state can be
// inspected and controlled over an HTTP/WebSocket dashboard API and exported
// to MQTT, InfluxDB and a SQLite snapshot journal.
//
// Usage:
//
//	iotsim [-config path] [-iterations n] [-seed n] [-issue-token subject]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/iotsim/internal/api"
	"github.com/nerrad567/iotsim/internal/automation"
	"github.com/nerrad567/iotsim/internal/device"
	"github.com/nerrad567/iotsim/internal/infrastructure/config"
	"github.com/nerrad567/iotsim/internal/infrastructure/logging"
	_ "github.com/nerrad567/iotsim/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// tokenTTL is the lifetime of tokens printed by -issue-token.
const tokenTTL = 24 * time.Hour

// options holds the command-line flags. Set flags override the config file.
type options struct {
	configPath string
	iterations int // -1 when not set
	seed       uint64
	seedSet    bool
	issueToken string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the command line. IOTSIM_CONFIG selects the config
// file when -config is absent.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("iotsim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := options{}
	fs.StringVar(&opts.configPath, "config", getConfigPath(), "path to the YAML configuration file")
	fs.IntVar(&opts.iterations, "iterations", -1, "automation passes to run at startup (overrides simulator.initial_iterations)")
	fs.Func("seed", "non-zero random seed (overrides simulator.seed)", func(v string) error {
		var seed uint64
		if _, err := fmt.Sscan(v, &seed); err != nil {
			return fmt.Errorf("invalid seed %q", v)
		}
		if seed == 0 {
			return errors.New("seed must be non-zero; omit -seed to seed from the clock")
		}
		opts.seed, opts.seedSet = seed, true
		return nil
	})
	fs.StringVar(&opts.issueToken, "issue-token", "", "print a dashboard JWT for this subject and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return options{}, fmt.Errorf("unexpected arguments")
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Startup order: configuration, logger, devices, export sinks, initial
// simulation passes, API server, config watcher and finally the timer loop.
// Deferred closes run in reverse order on shutdown.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//   - stdout: Destination for the state report and issued tokens
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting iotsim",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
	)

	if opts.issueToken != "" {
		token, err := api.IssueToken(cfg.Security.JWT.Secret, opts.issueToken, tokenTTL)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}
		fmt.Fprintln(stdout, token)
		return nil
	}

	sys, err := buildSystem(cfg, log)
	if err != nil {
		return err
	}

	// Export sinks are registered before the first pass so bootstrap
	// changes are exported too.
	exports, err := openSinks(ctx, cfg, sys, log)
	if err != nil {
		return err
	}
	defer exports.Close()

	if err := sys.Simulate(ctx, cfg.Simulator.InitialIterations); err != nil {
		return fmt.Errorf("initial simulation: %w", err)
	}
	writeReport(stdout, sys)

	interval := cfg.GetSimulationInterval()
	if interval <= 0 && !cfg.API.Enabled {
		log.Info("timer and API disabled, exiting after initial simulation")
		return nil
	}

	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			System:   sys,
			Journal:  exports.journal,
			MQTT:     exports.mqttStatus(),
			InfluxDB: exports.influxStatus(),
			DB:       exports.dbStats(),
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := watchConfig(ctx, opts.configPath, sys, log); err != nil {
		log.Warn("config hot-reload unavailable", "error", err)
	}

	if err := exports.healthCheck(ctx); err != nil {
		log.Warn("export sink health check failed", "error", err)
	}

	log.Info("iotsim running", "devices", len(sys.Devices()), "interval", interval)
	if err := sys.Run(ctx, interval); err != nil {
		return fmt.Errorf("simulation loop: %w", err)
	}

	log.Info("shutdown signal received, stopping...")
	return nil
}

// loadConfig loads the file and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if opts.iterations >= 0 {
		cfg.Simulator.InitialIterations = opts.iterations
	}
	if opts.seedSet {
		cfg.Simulator.Seed = opts.seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// writeReport prints one "<id>: <status>" line per device.
func writeReport(w io.Writer, sys *automation.System) {
	for _, snap := range sys.Snapshots() {
		fmt.Fprintf(w, "%s: %s\n", snap.ID, snap.Status)
	}
}

// watchConfig applies hot-reloadable settings: the timer interval, the
// strategy and the log level. Everything else needs a restart.
func watchConfig(ctx context.Context, path string, sys *automation.System, log *logging.Logger) error {
	return config.Watch(ctx, path, func(cfg *config.Config) {
		sys.SetInterval(cfg.GetSimulationInterval())
		log.SetLevel(cfg.Logging.Level)
		if strategy, err := device.ParseStrategy(cfg.Simulator.Strategy); err == nil {
			sys.SetStrategy(strategy)
		}
		log.Info("configuration reloaded",
			"interval", cfg.GetSimulationInterval(),
			"strategy", cfg.Simulator.Strategy,
			"log_level", cfg.Logging.Level,
		)
	}, func(err error) {
		log.Warn("configuration reload rejected", "error", err)
	})
}

// getConfigPath returns the configuration file path.
// Uses IOTSIM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IOTSIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
