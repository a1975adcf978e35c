package runner

import (
	"log/slog"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/http"
)

// RunOptions configures one run. It is built once from RunOption values
// and never changed afterwards.
type RunOptions struct {
	variables  testcase.Variables
	parameters testcase.Variables
	session    *http.Session
	caseID     string
	export     []string
	referenced bool
	logger     *slog.Logger
	logPath    string
}

type RunOption func(*RunOptions)

func newRunOptions(opts []RunOption) RunOptions {
	var o RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	o.variables = o.variables.Clone()
	o.parameters = o.parameters.Clone()
	o.export = append([]string(nil), o.export...)
	return o
}

// WithVariables seeds the run's session variables. They override the test
// case's config variables and are used as given, never parsed as templates.
func WithVariables(vars testcase.Variables) RunOption {
	return func(o *RunOptions) {
		o.variables = vars
	}
}

// WithParameters applies one parameter combination. It overrides both the
// session variables and the config variables.
func WithParameters(params testcase.Variables) RunOption {
	return func(o *RunOptions) {
		o.parameters = params
	}
}

// WithSession runs against an existing session so cookies carry over.
func WithSession(s *http.Session) RunOption {
	return func(o *RunOptions) {
		o.session = s
	}
}

// WithCaseID sets the case id instead of generating one.
func WithCaseID(id string) RunOption {
	return func(o *RunOptions) {
		o.caseID = id
	}
}

// WithExport overrides the config's export list.
func WithExport(names ...string) RunOption {
	return func(o *RunOptions) {
		o.export = names
	}
}

// Referenced marks a run started by another run's testcase step. It logs
// through the caller's logger and file.
func Referenced(logger *slog.Logger, logPath string) RunOption {
	return func(o *RunOptions) {
		o.referenced = true
		o.logger = logger
		o.logPath = logPath
	}
}
