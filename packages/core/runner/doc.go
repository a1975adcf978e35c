// Package runner executes test cases.
//
// A Runner is built once per invocation from a project context. Each run of
// a test case is a CaseRunner, which moves through four states:
//
//	uninitialized -> configuring -> running -> finished
//
// While configuring it resolves the config variables (with session variables
// and parameters layered on top), the name and the base URL. While running it
// executes the steps one at a time, in order. Each step sees its own
// variables over the variables earlier steps extracted or exported, over the
// config variables.
//
// A step that fails validation is retried up to its retry_times; any other
// error aborts the run at once. A testcase step runs the referenced test
// case with the caller's session and case id, and merges the variables it
// exports back into the caller's scope.
package runner
