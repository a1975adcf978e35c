package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin/uploader"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/template"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/http"
	"github.com/abdul-hamid-achik/hitrunner/packages/rpc"
)

func (c *CaseRunner) runRequest(ctx context.Context, step *testcase.Step, req *testcase.Request, vars testcase.Variables) (*testcase.StepResult, error) {
	if err := c.callHooks(step.SetupHooks, vars, "setup"); err != nil {
		return nil, err
	}

	resolved, err := c.resolveRequest(req, vars)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.FromStep(resolved, c.config.BaseURL)
	if err != nil {
		return nil, err
	}
	vars["request"] = map[string]any{
		"method":  httpReq.Method,
		"url":     httpReq.BuildURL(),
		"headers": httpReq.Headers,
	}

	resp, err := c.runner.sessionDo(ctx, c.session, httpReq)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("request done", "method", httpReq.Method, "url", resp.URL, "status", resp.StatusCode, "elapsed_ms", resp.DurationMs())
	return c.finish(step, testcase.KindRequest, resp, vars)
}

// resolveRequest returns a copy of req with every template resolved. An
// upload mapping becomes a multipart body, which takes the place of data.
func (c *CaseRunner) resolveRequest(req *testcase.Request, vars testcase.Variables) (*testcase.Request, error) {
	out := *req
	engine := c.runner.engine

	strs := []*string{&out.Method, &out.URL}
	for _, s := range strs {
		v, err := engine.ResolveString(*s, vars)
		if err != nil {
			return nil, err
		}
		*s = template.Stringify(v)
	}

	maps := []*map[string]any{&out.Params, &out.Headers, &out.Cookies, &out.Upload}
	for _, m := range maps {
		if *m == nil {
			continue
		}
		v, err := engine.Resolve(*m, vars)
		if err != nil {
			return nil, err
		}
		*m = v.(map[string]any)
	}

	var err error
	if out.JSON, err = engine.Resolve(out.JSON, vars); err != nil {
		return nil, err
	}
	if out.Data, err = engine.Resolve(out.Data, vars); err != nil {
		return nil, err
	}

	if len(out.Upload) > 0 {
		if out.Data != nil || out.JSON != nil {
			return nil, failure.Params("request %s %s: upload cannot be combined with json or data", out.Method, out.URL)
		}
		enc, err := uploader.Encode(c.runner.project.RootDir, out.Upload)
		if err != nil {
			return nil, err
		}
		out.Data = enc
	}
	return &out, nil
}

func (c *CaseRunner) runReference(ctx context.Context, step *testcase.Step, ref *testcase.Reference, vars testcase.Variables) (*testcase.StepResult, error) {
	if ref.TestCase == nil {
		return nil, failure.Params("step %q: referenced test case %s is not loaded", step.Name, ref.Path)
	}
	if err := c.callHooks(step.SetupHooks, vars, "setup"); err != nil {
		return nil, err
	}

	child := c.runner.NewCase(ref.TestCase,
		Referenced(c.logger, c.logPath),
		WithSession(c.session),
		WithCaseID(c.caseID),
		WithVariables(vars),
		WithExport(step.Export...),
	)
	summary, err := child.Run(ctx)

	result := &testcase.StepResult{Kind: testcase.KindTestCase}
	if summary != nil {
		result.Data = testcase.NestedResults(summary.StepResults)
		result.Elapsed = summary.Time.Duration
		for _, r := range summary.StepResults {
			result.ContentSize += r.ContentSize
		}
	}
	if err != nil {
		return result, err
	}

	if err := c.callHooks(step.TeardownHooks, vars, "teardown"); err != nil {
		return result, err
	}

	result.ExportVars = summary.InOut.ExportVars
	result.Success = summary.Success
	return result, nil
}

func (c *CaseRunner) runSQL(ctx context.Context, step *testcase.Step, req *testcase.SQLRequest, vars testcase.Variables) (*testcase.StepResult, error) {
	if err := c.callHooks(step.SetupHooks, vars, "setup"); err != nil {
		return nil, err
	}

	resolved := *req
	v, err := c.runner.engine.ResolveString(req.SQL, vars)
	if err != nil {
		return nil, err
	}
	resolved.SQL = template.Stringify(v)
	if resolved.DSN == "" {
		resolved.DSN = c.config.DB.DSN
	} else {
		v, err := c.runner.engine.ResolveString(resolved.DSN, vars)
		if err != nil {
			return nil, err
		}
		resolved.DSN = template.Stringify(v)
	}
	resolved.DSN = c.sqliteRelative(resolved.DSN)

	result, err := c.runner.pool.Execute(ctx, &resolved)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("sql done", "method", resolved.Method, "rows", len(result.Rows))
	return c.finish(step, testcase.KindSQL, result, vars)
}

// sqliteRelative resolves a relative sqlite path against the project root.
func (c *CaseRunner) sqliteRelative(dsn string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		path, ok := strings.CutPrefix(dsn, prefix)
		if !ok {
			continue
		}
		if path == "" || strings.HasPrefix(path, "/") || strings.HasPrefix(path, ":memory:") || strings.HasPrefix(path, "file:") {
			return dsn
		}
		return prefix + c.runner.project.Loader().Abs(path)
	}
	return dsn
}

func (c *CaseRunner) runRPC(ctx context.Context, step *testcase.Step, req *testcase.RPCRequest, vars testcase.Variables) (*testcase.StepResult, error) {
	if err := c.callHooks(step.SetupHooks, vars, "setup"); err != nil {
		return nil, err
	}

	resolved := *req
	for _, s := range []*string{&resolved.Target, &resolved.Method} {
		v, err := c.runner.engine.ResolveString(*s, vars)
		if err != nil {
			return nil, err
		}
		*s = template.Stringify(v)
	}
	if resolved.Target == "" {
		resolved.Target = c.config.RPC.Target
	}
	if resolved.Timeout == 0 {
		resolved.Timeout = c.config.RPC.Timeout
	}
	params, err := c.runner.engine.Resolve(req.Params, vars)
	if err != nil {
		return nil, err
	}
	resolved.Params = params

	reply, err := rpc.NewClient(c.session).Call(ctx, &resolved)
	if err != nil {
		return nil, err
	}
	if reply.Error != nil {
		c.logger.Debug("rpc error reply", "method", resolved.Method, "code", reply.Error.Code, "message", reply.Error.Message)
	}
	return c.finish(step, testcase.KindRPC, reply, vars)
}

func (r *Runner) sessionDo(ctx context.Context, s *http.Session, req *http.Request) (*http.Response, error) {
	resp, err := s.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.BuildURL(), err)
	}
	return resp, nil
}
