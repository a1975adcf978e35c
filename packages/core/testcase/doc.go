// Package testcase holds the in-memory model of a declarative test case
// (config plus ordered steps) and the results a run produces.
//
// A Step carries exactly one Payload variant, fixed at construction through
// NewStep. A StepResult's Data is either the transport SessionData of a leaf
// step or the NestedResults of a referenced test case.
package testcase
