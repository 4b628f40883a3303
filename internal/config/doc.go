// Package config loads, normalizes, and validates the TOML configuration
// shared by the CLI and the intake pipeline: service endpoints, credentials,
// file limits, stage timeouts, and local data/log paths.
package config
