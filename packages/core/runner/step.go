package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/assertions"
	"github.com/abdul-hamid-achik/hitrunner/packages/capture"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/template"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// StepError is the error a step aborts its run with.
type StepError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("step %q failed after %d attempts: %v", e.Step, e.Attempts, e.Err)
	}
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// executor runs one attempt of a step with its merged, resolved variables.
type executor func(ctx context.Context, step *testcase.Step, vars testcase.Variables) (*testcase.StepResult, error)

func (c *CaseRunner) executor(step *testcase.Step) (executor, error) {
	switch p := step.Payload().(type) {
	case *testcase.Request:
		return func(ctx context.Context, step *testcase.Step, vars testcase.Variables) (*testcase.StepResult, error) {
			return c.runRequest(ctx, step, p, vars)
		}, nil
	case *testcase.Reference:
		return func(ctx context.Context, step *testcase.Step, vars testcase.Variables) (*testcase.StepResult, error) {
			return c.runReference(ctx, step, p, vars)
		}, nil
	case *testcase.SQLRequest:
		return func(ctx context.Context, step *testcase.Step, vars testcase.Variables) (*testcase.StepResult, error) {
			return c.runSQL(ctx, step, p, vars)
		}, nil
	case *testcase.RPCRequest:
		return func(ctx context.Context, step *testcase.Step, vars testcase.Variables) (*testcase.StepResult, error) {
			return c.runRPC(ctx, step, p, vars)
		}, nil
	default:
		return nil, failure.Params("step %q: unsupported payload %T", step.Name, p)
	}
}

// runStep runs a step, retrying it on validation failure only. The result
// is never nil: a step that fails before producing one is recorded as a
// failed result.
func (c *CaseRunner) runStep(ctx context.Context, step *testcase.Step) (*testcase.StepResult, error) {
	name := c.stepName(step)
	logger := c.logger.With("step", name)
	logger.Info("run step begin")

	failed := func(attempts int, err error) (*testcase.StepResult, error) {
		return &testcase.StepResult{Name: name, Kind: step.Kind(), Attempts: attempts},
			&StepError{Step: name, Attempts: attempts, Err: err}
	}

	exec, err := c.executor(step)
	if err != nil {
		return failed(0, err)
	}

	interval := c.runner.retryInterval
	if step.RetryInterval != nil {
		interval = *step.RetryInterval
	}

	var result *testcase.StepResult
	for attempt := 1; ; attempt++ {
		start := time.Now()
		result, err = c.attempt(ctx, step, exec)
		if result == nil {
			result = &testcase.StepResult{Kind: step.Kind()}
		}
		result.Name = name
		result.Attempts = attempt
		if result.Elapsed == 0 {
			result.Elapsed = time.Since(start)
		}

		if err == nil {
			break
		}
		if !errors.Is(err, failure.ErrValidation) || attempt > step.RetryTimes {
			result.Success = false
			logger.Error("run step failed", "attempt", attempt, "error", err)
			return result, &StepError{Step: name, Attempts: attempt, Err: err}
		}

		logger.Warn("validation failed, retrying",
			"attempt", attempt, "retry_times", step.RetryTimes, "interval", interval, "error", err)
		if err := sleep(ctx, interval); err != nil {
			result.Success = false
			logger.Error("run step cancelled", "attempt", attempt, "error", err)
			return result, &StepError{Step: name, Attempts: attempt, Err: err}
		}
	}

	if len(result.ExportVars) > 0 {
		logger.Info("export variables", "vars", result.ExportVars)
	}
	logger.Info("run step end", "success", result.Success, "attempts", result.Attempts)
	return result, nil
}

// attempt merges and resolves the step's variables, then runs the step once.
func (c *CaseRunner) attempt(ctx context.Context, step *testcase.Step, exec executor) (*testcase.StepResult, error) {
	vars, err := c.mergeStepVariables(step.Variables)
	if err != nil {
		return nil, err
	}
	return exec(ctx, step, vars)
}

// mergeStepVariables layers step variables over session variables over the
// config variables. Config and session values are resolved already; only
// the step's own variables are parsed.
func (c *CaseRunner) mergeStepVariables(stepVars testcase.Variables) (testcase.Variables, error) {
	scope := testcase.Merge(c.config.Variables, c.sessionVars)
	vars, err := c.runner.engine.ResolveVariablesWith(stepVars, scope)
	if err != nil {
		return nil, err
	}
	return testcase.Variables(vars), nil
}

// stepName resolves the step's name, falling back to the raw name when it
// references variables that are not known yet.
func (c *CaseRunner) stepName(step *testcase.Step) string {
	merged := testcase.Merge(c.config.Variables, c.sessionVars, step.Variables)
	v, err := c.runner.engine.ResolveString(step.Name, merged)
	if err != nil {
		return step.Name
	}
	return template.Stringify(v)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// outcome is what a transport returns: a subject for extraction and
// validation, and a record for the step's session data.
type outcome interface {
	Document() capture.Document
	Record() (testcase.ReqResp, testcase.Stat)
}

// finish runs the part of a step shared by every transport: teardown hooks,
// extraction and validation. The extracted variables become the result's
// export variables.
func (c *CaseRunner) finish(step *testcase.Step, kind testcase.Kind, out outcome, vars testcase.Variables) (*testcase.StepResult, error) {
	doc := out.Document()
	record, stat := out.Record()
	data := &testcase.SessionData{ReqResps: []testcase.ReqResp{record}, Stat: stat}
	result := &testcase.StepResult{
		Kind:        kind,
		ContentSize: stat.ContentSize,
		Elapsed:     time.Duration(stat.ResponseTimeMs * float64(time.Millisecond)),
		Data:        data,
	}

	vars["response"] = map[string]any(doc)
	if err := c.callHooks(step.TeardownHooks, vars, "teardown"); err != nil {
		return result, err
	}

	extracted, err := capture.ExtractAll(doc, step.Extract)
	if err != nil {
		return result, &failure.ValidationError{Step: step.Name, Failures: []string{err.Error()}}
	}
	for k, v := range extracted {
		vars[k] = v
	}
	result.ExportVars = testcase.Variables(extracted)

	resolve := func(v any) (any, error) {
		return c.runner.engine.Resolve(v, vars)
	}
	evaluator := assertions.NewEvaluator(doc,
		assertions.WithBaseDir(c.runner.project.RootDir),
		assertions.WithResolver(resolve))
	validators, failures, err := evaluator.EvaluateAll(step.Validators)
	data.Validators = validators
	if err != nil {
		return result, err
	}

	if len(step.ValidateScript) > 0 {
		env := testcase.Merge(vars, testcase.Variables(doc))
		scripts, scriptFailures, err := assertions.Script(step.ValidateScript, env)
		data.Validators = append(data.Validators, scripts...)
		if err != nil {
			return result, err
		}
		failures = append(failures, scriptFailures...)
	}

	if len(failures) > 0 {
		return result, &failure.ValidationError{Step: step.Name, Failures: failures}
	}
	data.Success = true
	result.Success = true
	return result, nil
}
