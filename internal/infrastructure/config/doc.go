// Package config handles loading and validating simulator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (IOTSIM_*)
//   - Validation of required fields, collected into one error
//   - Default value handling, including the bootstrap device list
//   - Reloading when the file changes on disk (Watch)
//
// Security Considerations:
//   - Sensitive values (broker password, InfluxDB token, JWT secret) should
//     be set via environment variables
//   - A configured JWT secret must be at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Simulator.InitialIterations)
package config
