// Package logging provides structured logging for the simulator.
//
// This package wraps Go's standard log/slog package so every component logs
// through the same handler chain with the same default fields.
//
// # Features
//
//   - JSON output (machine-parsable) or text output for local runs
//   - Default fields (service, version) on all log entries
//   - Level filtering that can be changed at runtime via SetLevel
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("simulation started", "iterations", 3)
//	logger.SetLevel("debug") // after a config reload
//
// Never log secrets such as the JWT signing key or broker passwords.
package logging
