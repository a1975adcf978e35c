// Package output renders test case summaries.
//
// Supported output formats:
//   - console: human-readable colored terminal output
//   - json: one document holding every run summary and the suite stats
//   - junit: JUnit XML for CI, one testsuite per run and one testcase per step
//
// Formatters accumulate or stream results per run; Flush writes the suite
// totals collected by a Suite.
package output
