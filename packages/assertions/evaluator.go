package assertions

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/capture"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/expr-lang/expr"
)

// Resolver resolves templates found in a validator's check or expect.
type Resolver func(any) (any, error)

type Evaluator struct {
	subject capture.Subject
	baseDir string // Base directory for resolving schema file paths
	resolve Resolver
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir sets the directory schema file paths are resolved against.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

// WithResolver sets the template resolver used on checks and expectations.
func WithResolver(r Resolver) EvaluatorOption {
	return func(e *Evaluator) {
		e.resolve = r
	}
}

func NewEvaluator(subject capture.Subject, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{subject: subject}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one validator. A check containing "$" is a template resolved
// against the step's variables; anything else is a field path into the
// subject. Errors are reserved for validators that cannot run at all.
func (e *Evaluator) Evaluate(v testcase.Validator) (testcase.ValidatorResult, error) {
	result := testcase.ValidatorResult{
		Comparator: v.Comparator,
		Check:      v.Check,
		Expect:     v.Expect,
		Message:    v.Message,
	}

	name, ok := Canonical(v.Comparator)
	if !ok {
		return result, failure.Params("unknown comparator %q", v.Comparator)
	}
	result.Comparator = name

	actual, err := e.actual(v.Check)
	if err != nil {
		return result, err
	}
	result.CheckValue = actual

	expected := v.Expect
	if e.resolve != nil {
		if expected, err = e.resolve(expected); err != nil {
			return result, err
		}
	}
	result.Expect = expected

	result.Passed, result.Detail = comparators[name](e, actual, expected)
	return result, nil
}

func (e *Evaluator) actual(check string) (any, error) {
	if strings.Contains(check, "$") && e.resolve != nil {
		return e.resolve(check)
	}
	if e.subject == nil {
		return nil, nil
	}
	value, _ := e.subject.Field(check)
	return value, nil
}

// EvaluateAll runs every validator and returns their results together with
// one line per failed validator.
func (e *Evaluator) EvaluateAll(validators []testcase.Validator) ([]testcase.ValidatorResult, []string, error) {
	results := make([]testcase.ValidatorResult, 0, len(validators))
	var failures []string
	for _, v := range validators {
		result, err := e.Evaluate(v)
		if err != nil {
			return results, failures, fmt.Errorf("validate %s(%s): %w", v.Comparator, v.Check, err)
		}
		results = append(results, result)
		if !result.Passed {
			failures = append(failures, Describe(result))
		}
	}
	return results, failures, nil
}

// Describe renders a failed result as a single line.
func Describe(r testcase.ValidatorResult) string {
	line := fmt.Sprintf("%s(%s): %s", r.Comparator, r.Check, r.Detail)
	if r.Message != "" {
		line = r.Message + ": " + line
	}
	return line
}

// Script evaluates boolean expressions against env. An expression that does
// not compile is a params error; one that evaluates to false, or fails at
// run time, is a failed result.
func Script(exprs []string, env map[string]any) ([]testcase.ValidatorResult, []string, error) {
	var results []testcase.ValidatorResult
	var failures []string
	for _, source := range exprs {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
		if err != nil {
			return results, failures, failure.Params("validate_script %q: %v", source, err)
		}

		result := testcase.ValidatorResult{Comparator: "script", Check: source, Expect: true}
		out, err := expr.Run(program, env)
		switch {
		case err != nil:
			result.Detail = err.Error()
		case out == true:
			result.Passed = true
			result.CheckValue = true
		default:
			result.CheckValue = out
			result.Detail = "expression evaluated to false"
		}
		results = append(results, result)
		if !result.Passed {
			failures = append(failures, Describe(result))
		}
	}
	return results, failures, nil
}
