package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/template"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/http"
	"github.com/google/uuid"
)

// State is the lifecycle stage of a CaseRunner.
type State int

const (
	StateUninitialized State = iota
	StateConfiguring
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CaseRunner owns one run of one test case: it resolves the config, runs
// the steps in order and assembles the summary. A CaseRunner runs once.
type CaseRunner struct {
	runner   *Runner
	testCase *testcase.TestCase
	opts     RunOptions

	state       State
	config      testcase.Config
	caseID      string
	session     *http.Session
	logger      *slog.Logger
	logPath     string
	sessionVars testcase.Variables
	results     []*testcase.StepResult
	startAt     time.Time
	duration    time.Duration
	summary     *testcase.Summary
}

func newCaseRunner(r *Runner, tc *testcase.TestCase, opts RunOptions) *CaseRunner {
	return &CaseRunner{runner: r, testCase: tc, opts: opts}
}

func (c *CaseRunner) State() State {
	return c.state
}

// CaseID returns the run's case id once the run has started.
func (c *CaseRunner) CaseID() string {
	return c.caseID
}

// Session returns the HTTP session the run uses once it has started.
func (c *CaseRunner) Session() *http.Session {
	return c.session
}

// Summary returns the summary of a finished run, or nil.
func (c *CaseRunner) Summary() *testcase.Summary {
	return c.summary
}

// Run executes the test case. It returns (nil, err) when the run fails
// before any step executes or when an export cannot be satisfied, and
// (summary, *StepError) when a step aborts the run or ctx is cancelled
// between steps; the summary then holds the steps that ran, including the
// failed one, and is never successful.
func (c *CaseRunner) Run(ctx context.Context) (*testcase.Summary, error) {
	if c.state != StateUninitialized {
		return nil, fmt.Errorf("test case %q: run already %s", c.testCase.Config.Name, c.state)
	}

	c.init()
	defer func() { c.state = StateFinished }()

	if err := c.configure(); err != nil {
		return nil, fmt.Errorf("test case %q: %w", c.testCase.Config.Name, err)
	}

	if !c.opts.referenced && c.runner.logDir != "" {
		logger, path, closer, err := openRunLog(c.logger, c.runner.logDir, c.caseID)
		if err != nil {
			return nil, err
		}
		defer closer.Close()
		c.logger, c.logPath = logger, path
	}

	c.state = StateRunning
	c.logger.Info("start to run testcase", "name", c.config.Name, "case_id", c.caseID)
	c.startAt = time.Now()
	stepErr := c.runSteps(ctx)
	c.duration = time.Since(c.startAt)
	if c.logPath != "" {
		c.logger.Info("generate testcase log", "path", c.logPath)
	}

	if stepErr != nil {
		c.summary = c.buildSummary(nil)
		c.summary.Success = false
		return c.summary, stepErr
	}

	exported, err := c.ExportVariables()
	if err != nil {
		return nil, err
	}
	c.summary = c.buildSummary(exported)
	return c.summary, nil
}

func (c *CaseRunner) init() {
	c.caseID = c.opts.caseID
	if c.caseID == "" {
		c.caseID = uuid.NewString()
	}
	c.session = c.opts.session
	if c.session == nil {
		var extra []http.SessionOption
		if c.testCase.Config.Verify {
			extra = append(extra, http.WithValidateSSL(true))
		}
		c.session = c.runner.NewSession(extra...)
	}
	c.logger = c.opts.logger
	if c.logger == nil {
		c.logger = c.runner.logger
	}
	c.logPath = c.opts.logPath
	c.sessionVars = c.opts.variables.Clone()
}

// configure resolves the config variables, layering session variables and
// then parameters over them, and then the name, base_url, DSN and RPC target.
// Session variables come from the caller resolved and are not parsed again.
func (c *CaseRunner) configure() error {
	c.state = StateConfiguring
	c.config = c.testCase.Config.Clone()

	raw := make(testcase.Variables, len(c.config.Variables)+len(c.opts.parameters))
	for name, value := range c.config.Variables {
		if _, ok := c.sessionVars[name]; !ok {
			raw[name] = value
		}
	}
	for name, value := range c.opts.parameters {
		raw[name] = value
	}
	vars, err := c.runner.engine.ResolveVariablesWith(raw, c.sessionVars)
	if err != nil {
		return fmt.Errorf("config variables: %w", err)
	}
	c.config.Variables = testcase.Variables(vars)

	fields := []struct {
		name string
		dst  *string
	}{
		{"name", &c.config.Name},
		{"base_url", &c.config.BaseURL},
		{"db.dsn", &c.config.DB.DSN},
		{"rpc.target", &c.config.RPC.Target},
	}
	for _, f := range fields {
		if *f.dst == "" {
			continue
		}
		v, err := c.runner.engine.ResolveString(*f.dst, vars)
		if err != nil {
			return fmt.Errorf("config %s: %w", f.name, err)
		}
		*f.dst = template.Stringify(v)
	}
	return nil
}

func (c *CaseRunner) runSteps(ctx context.Context) error {
	for _, step := range c.testCase.Steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: c.stepName(step), Err: err}
		}
		result, err := c.runStep(ctx, step)
		if result != nil {
			c.results = append(c.results, result)
		}
		if err != nil {
			return err
		}
		for k, v := range result.ExportVars {
			c.sessionVars[k] = v
		}
	}
	return nil
}

// ExportVariables reads the export list (the run's override, else the
// config's) from the session variables. A missing name is a params error.
func (c *CaseRunner) ExportVariables() (testcase.Variables, error) {
	names := c.opts.export
	if len(names) == 0 {
		names = c.config.Export
	}
	exported := make(testcase.Variables, len(names))
	var missing []string
	for _, name := range names {
		v, ok := c.sessionVars[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		exported[name] = v
	}
	if len(missing) > 0 {
		return nil, failure.Params("test case %q: failed to export %v from session variables %v",
			c.config.Name, missing, c.sessionVars.Keys())
	}
	return exported, nil
}

func (c *CaseRunner) buildSummary(exported testcase.Variables) *testcase.Summary {
	success := true
	for _, r := range c.results {
		if !r.Success {
			success = false
			break
		}
	}
	if exported == nil {
		exported = testcase.Variables{}
	}
	return &testcase.Summary{
		Name:    c.config.Name,
		Success: success,
		CaseID:  c.caseID,
		Time: testcase.Time{
			StartAt:  c.startAt,
			Duration: c.duration,
		},
		InOut: testcase.InOut{
			ConfigVars: c.config.Variables,
			ExportVars: exported,
		},
		Log:         c.logPath,
		StepResults: append([]*testcase.StepResult(nil), c.results...),
	}
}

// IsStepAbort reports whether err came from a step rather than from
// configuration or export.
func IsStepAbort(err error) bool {
	var abort *StepError
	return errors.As(err, &abort)
}
