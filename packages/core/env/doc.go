// Package env handles .env files and process environment variables for
// hitrunner.
//
// It provides functionality for:
//   - Loading .env files and exporting unset keys to the process
//   - Looking up variables across .env values and the process environment
//   - Collecting prefixed system variables as run-level overrides
package env
