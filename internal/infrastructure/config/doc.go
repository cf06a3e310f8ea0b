// Package config loads server configuration.
//
// Values come from three layers, later ones winning:
//   - built-in defaults
//   - an optional YAML or TOML file named by CONFIG_FILE
//   - environment variables
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
package config
