// Package config handles configuration loading and management for hitrunner.
//
// It provides functionality for:
//   - Loading configuration from hitrunner.config.json or .hitrunnerrc files
//   - Default configuration values
//   - Merging file configuration with command line overrides
package config
