// Package cmd implements the hitrunner CLI commands using Cobra.
//
// Available commands:
//   - run: Execute test case files
//   - validate: Load test case files and check their validators without running them
//   - list: Display the steps and run count of each test case
//   - schema: Print the JSON Schema of the test case file format
//   - init: Create a new hitrunner project with an example test case
//   - version: Show hitrunner version information
//
// Flags default from HITRUNNER_* environment variables.
package cmd
