package cmd

// Exit codes for hitrunner CLI
const (
	// ExitSuccess indicates all test cases passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more runs failed
	ExitTestFailure = 1

	// ExitLoadError indicates a test case file could not be loaded
	ExitLoadError = 2

	// ExitConfigError indicates a run failed before its first step
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
