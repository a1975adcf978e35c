package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/config"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/parameters"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/project"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/template"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/db"
	"github.com/abdul-hamid-achik/hitrunner/packages/http"
)

// Runner holds what the test-case runs of one invocation share: the project
// context, the function registry, the template engine and the database pool.
// Each run gets its own HTTP session unless it is handed one.
type Runner struct {
	project       *project.Context
	registry      *builtin.Registry
	engine        *template.Engine
	expander      *parameters.Expander
	pool          *db.Pool
	logger        *slog.Logger
	logDir        string
	retryInterval time.Duration
	sessionOpts   []http.SessionOption
	onRun         RunHook
}

// RunHook observes every run RunTestCase finishes, including failed ones.
type RunHook func(summary *testcase.Summary, err error)

type Option func(*Runner)

// WithLogger sets the logger runs write to. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogDir makes every top-level run also write its log to
// <dir>/<case id>.run.log.
func WithLogDir(dir string) Option {
	return func(r *Runner) {
		r.logDir = dir
	}
}

// WithSessionOptions adds options applied to every session the runner creates.
func WithSessionOptions(opts ...http.SessionOption) Option {
	return func(r *Runner) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// WithRetryInterval sets the interval used by steps that retry without
// declaring one.
func WithRetryInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.retryInterval = d
	}
}

// WithRunHook registers a hook called after each run of RunTestCase.
func WithRunHook(h RunHook) Option {
	return func(r *Runner) {
		r.onRun = h
	}
}

// New builds a runner for proj. Session defaults, the log directory and the
// retry interval come from the project configuration; options override them.
func New(proj *project.Context, opts ...Option) *Runner {
	cfg := proj.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	registry := proj.Registry()
	engine := template.New(registry)
	r := &Runner{
		project:       proj,
		registry:      registry,
		engine:        engine,
		expander:      parameters.NewExpander(engine),
		pool:          db.NewPool(),
		logger:        slog.Default(),
		logDir:        cfg.LogDir,
		retryInterval: time.Duration(cfg.RetryInterval) * time.Millisecond,
		sessionOpts:   sessionOptions(cfg),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sessionOptions(cfg *config.Config) []http.SessionOption {
	opts := []http.SessionOption{
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, http.WithTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(cfg.RateLimit))
	}
	return opts
}

// Registry returns the function registry runs resolve ${func()} through.
// Functions registered on it are visible to every later run.
func (r *Runner) Registry() *builtin.Registry {
	return r.registry
}

// Project returns the project context the runner was built for.
func (r *Runner) Project() *project.Context {
	return r.project
}

// NewSession creates an HTTP session with the runner's session options.
func (r *Runner) NewSession(extra ...http.SessionOption) *http.Session {
	opts := append(append([]http.SessionOption(nil), r.sessionOpts...), extra...)
	return http.NewSession(opts...)
}

// NewCase prepares a single run of tc.
func (r *Runner) NewCase(tc *testcase.TestCase, opts ...RunOption) *CaseRunner {
	return newCaseRunner(r, tc, newRunOptions(opts))
}

// RunTestCase expands the test case's parameters and runs it once per
// combination, each with a fresh session. A test case without parameters
// runs once. Summaries are returned for every run that produced one; the
// error joins every run's error. An expansion error is reported to the run
// hook like a run that produced no summary.
func (r *Runner) RunTestCase(ctx context.Context, tc *testcase.TestCase, opts ...RunOption) ([]*testcase.Summary, error) {
	combos, err := r.Combinations(tc)
	if err != nil {
		if r.onRun != nil {
			r.onRun(nil, err)
		}
		return nil, err
	}
	return r.RunCombinations(ctx, tc, combos, opts...)
}

// RunCombinations runs tc once per parameter set, as returned by
// Combinations. Callers that expanded the parameters already use it so that
// data files and generator functions are not evaluated twice.
func (r *Runner) RunCombinations(ctx context.Context, tc *testcase.TestCase, combos []testcase.Variables, opts ...RunOption) ([]*testcase.Summary, error) {
	var (
		summaries []*testcase.Summary
		errs      []error
	)
	for _, params := range combos {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		runOpts := append(append([]RunOption(nil), opts...), WithParameters(params))
		summary, err := r.NewCase(tc, runOpts...).Run(ctx)
		if r.onRun != nil {
			r.onRun(summary, err)
		}
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return summaries, errors.Join(errs...)
}

// Combinations returns the parameter sets RunTestCase runs tc with. A test
// case without parameters yields a single nil set.
func (r *Runner) Combinations(tc *testcase.TestCase) ([]testcase.Variables, error) {
	combos, err := r.expander.Expand(tc.Config.Parameters)
	if err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		combos = []testcase.Variables{nil}
	}
	return combos, nil
}

// Close releases the database connections opened by sql_request steps.
func (r *Runner) Close() error {
	return r.pool.Close()
}
