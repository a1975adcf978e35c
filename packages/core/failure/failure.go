// Package failure defines the error kinds shared by the template engine,
// the parameter expander and the runner.
//
// Callers match kinds with errors.Is against the sentinels below; every
// error produced by hitrunner packages wraps exactly one of them.
package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrVariableNotFound reports a reference to a variable missing from scope,
	// or a variable that references itself.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrVariableCycle reports two or more variables that depend on each other.
	ErrVariableCycle = errors.New("variable dependency cycle")

	// ErrFunctionNotFound reports a function reference no strategy can serve.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrParams reports a malformed parameter definition, a missing export or an
	// invalid template call.
	ErrParams = errors.New("params error")

	// ErrValidation reports a step whose validators did not hold.
	ErrValidation = errors.New("validation failed")

	// ErrEnvNotFound reports an environ() lookup of an unset variable.
	ErrEnvNotFound = errors.New("environment variable not found")

	// ErrFileFormat reports a test case or data file that cannot be decoded.
	ErrFileFormat = errors.New("file format error")
)

// VariableNotFound builds an ErrVariableNotFound error naming the missing variables.
func VariableNotFound(names ...string) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return fmt.Errorf("%w: %s", ErrVariableNotFound, strings.Join(sorted, ", "))
}

// CycleError lists the variables that could not be resolved because they
// depend on each other.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrVariableCycle, strings.Join(e.Names, ", "))
}

// Is makes a cycle match both ErrVariableCycle and ErrVariableNotFound, since
// a cycle is a variable that can never be resolved.
func (e *CycleError) Is(target error) bool {
	return target == ErrVariableCycle || target == ErrVariableNotFound
}

// Params builds an ErrParams error.
func Params(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParams, fmt.Sprintf(format, args...))
}

// ValidationError carries the validator outcomes of a failed step attempt.
type ValidationError struct {
	Step     string
	Failures []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %q: %s: %s", e.Step, ErrValidation, strings.Join(e.Failures, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
