// Package loader reads test case files into testcase.TestCase values.
//
// YAML and JSON files go through the same decoder. Referenced test cases
// (a step's `testcase: path`) are loaded eagerly so that a loaded test case
// is complete and can run without touching the filesystem again.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"gopkg.in/yaml.v3"
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "PATCH": true,
}

// Loader resolves relative paths against a project root.
type Loader struct {
	root    string
	loaded  map[string]*testcase.TestCase
	loading map[string]bool
}

func New(root string) *Loader {
	return &Loader{
		root:    root,
		loaded:  make(map[string]*testcase.TestCase),
		loading: make(map[string]bool),
	}
}

// Root returns the directory relative paths are resolved against.
func (l *Loader) Root() string {
	return l.root
}

// Abs resolves path against the project root unless it is already absolute.
func (l *Loader) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// IsTestFile reports whether path has a test case file extension.
func IsTestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".json":
		return true
	}
	return false
}

// LoadTestCase loads a test case file and every test case it references.
func (l *Loader) LoadTestCase(path string) (*testcase.TestCase, error) {
	abs, err := filepath.Abs(l.Abs(path))
	if err != nil {
		return nil, err
	}
	if tc, ok := l.loaded[abs]; ok {
		return tc, nil
	}
	if l.loading[abs] {
		return nil, fmt.Errorf("%w: %s references itself through its steps", failure.ErrFileFormat, path)
	}
	l.loading[abs] = true
	defer delete(l.loading, abs)

	if !IsTestFile(abs) {
		return nil, fmt.Errorf("%w: test case file should be YAML/JSON, got %s", failure.ErrFileFormat, path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot read test case: %w", err)
	}

	if strings.EqualFold(filepath.Ext(abs), ".json") {
		// Raw tabs in valid JSON are only ever whitespace, which YAML
		// rejects as indentation.
		data = bytes.ReplaceAll(data, []byte("\t"), []byte(" "))
	}

	file, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	tc, err := l.convert(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tc.Config.Path = abs
	l.loaded[abs] = tc
	return tc, nil
}

// Decode parses a test case document with unknown fields rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", failure.ErrFileFormat)
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrFileFormat, err)
	}
	return &f, nil
}

func (l *Loader) convert(f *File) (*testcase.TestCase, error) {
	if f.Config.Name == "" {
		return nil, fmt.Errorf("%w: config.name is required", failure.ErrFileFormat)
	}
	if len(f.TestSteps) == 0 {
		return nil, fmt.Errorf("%w: teststeps must not be empty", failure.ErrFileFormat)
	}

	cfg := testcase.Config{
		Name:       f.Config.Name,
		BaseURL:    f.Config.BaseURL,
		Variables:  testcase.Variables(f.Config.Variables),
		Parameters: testcase.Parameters(f.Config.Parameters),
		Export:     f.Config.Export,
		Verify:     f.Config.Verify,
	}
	if cfg.Variables == nil {
		cfg.Variables = testcase.Variables{}
	}
	if f.Config.DB != nil {
		cfg.DB.DSN = f.Config.DB.DSN
	}
	if f.Config.RPC != nil {
		cfg.RPC = testcase.RPCConfig{Target: f.Config.RPC.Target, Timeout: seconds(f.Config.RPC.Timeout)}
	}

	tc := &testcase.TestCase{Config: cfg}
	for i := range f.TestSteps {
		step, err := l.convertStep(&f.TestSteps[i])
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		tc.Steps = append(tc.Steps, step)
	}
	return tc, nil
}

func (l *Loader) convertStep(sf *StepFile) (*testcase.Step, error) {
	payload, err := l.payload(sf)
	if err != nil {
		return nil, err
	}

	step, err := testcase.NewStep(sf.Name, payload)
	if err != nil {
		return nil, err
	}
	if sf.Variables != nil {
		step.Variables = testcase.Variables(sf.Variables)
	}
	if sf.Extract != nil {
		step.Extract = sf.Extract
	}
	for _, h := range sf.SetupHooks {
		step.SetupHooks = append(step.SetupHooks, testcase.Hook(h))
	}
	for _, h := range sf.TeardownHooks {
		step.TeardownHooks = append(step.TeardownHooks, testcase.Hook(h))
	}
	for _, raw := range sf.Validate {
		v, err := ParseValidator(raw)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", sf.Name, err)
		}
		step.Validators = append(step.Validators, v)
	}
	if sf.RetryTimes < 0 {
		return nil, fmt.Errorf("%w: step %q: retry_times must not be negative", failure.ErrFileFormat, sf.Name)
	}
	step.ValidateScript = sf.ValidateScript
	step.Export = sf.Export
	step.RetryTimes = sf.RetryTimes
	if sf.RetryInterval != nil {
		if *sf.RetryInterval < 0 {
			return nil, fmt.Errorf("%w: step %q: retry_interval must not be negative", failure.ErrFileFormat, sf.Name)
		}
		interval := seconds(*sf.RetryInterval)
		step.RetryInterval = &interval
	}
	return step, nil
}

func (l *Loader) payload(sf *StepFile) (testcase.Payload, error) {
	var payloads []testcase.Payload

	if sf.Request != nil {
		method := strings.ToUpper(sf.Request.Method)
		if !httpMethods[method] {
			return nil, fmt.Errorf("%w: step %q: invalid HTTP method %q", failure.ErrFileFormat, sf.Name, sf.Request.Method)
		}
		payloads = append(payloads, &testcase.Request{
			Method:         method,
			URL:            sf.Request.URL,
			Params:         sf.Request.Params,
			Headers:        sf.Request.Headers,
			Cookies:        sf.Request.Cookies,
			JSON:           sf.Request.JSON,
			Data:           sf.Request.Data,
			Upload:         sf.Request.Upload,
			Timeout:        seconds(sf.Request.Timeout),
			AllowRedirects: sf.Request.AllowRedirects,
		})
	}
	if sf.TestCase != "" {
		ref, err := l.LoadTestCase(sf.TestCase)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, &testcase.Reference{Path: sf.TestCase, TestCase: ref})
	}
	if sf.SQLRequest != nil {
		method := testcase.SQLMethod(strings.ToUpper(sf.SQLRequest.Method))
		switch method {
		case testcase.SQLFetchOne, testcase.SQLFetchMany, testcase.SQLFetchAll,
			testcase.SQLInsert, testcase.SQLUpdate, testcase.SQLDelete:
		default:
			return nil, fmt.Errorf("%w: step %q: invalid SQL method %q", failure.ErrFileFormat, sf.Name, sf.SQLRequest.Method)
		}
		payloads = append(payloads, &testcase.SQLRequest{
			Method: method,
			SQL:    sf.SQLRequest.SQL,
			Size:   sf.SQLRequest.Size,
			DSN:    sf.SQLRequest.DSN,
		})
	}
	if sf.RPCRequest != nil {
		payloads = append(payloads, &testcase.RPCRequest{
			Target:  sf.RPCRequest.Target,
			Method:  sf.RPCRequest.Method,
			Params:  sf.RPCRequest.Params,
			Timeout: seconds(sf.RPCRequest.Timeout),
		})
	}

	if len(payloads) != 1 {
		return nil, fmt.Errorf("%w: step %q must have exactly one of request, testcase, sql_request, rpc_request (has %d)",
			failure.ErrFileFormat, sf.Name, len(payloads))
	}
	return payloads[0], nil
}

// ParseValidator accepts {"eq": [check, expect, msg?]} and
// {"check": ..., "assert": ..., "expect": ..., "msg": ...}.
func ParseValidator(raw map[string]any) (testcase.Validator, error) {
	if check, ok := raw["check"]; ok {
		comparator, ok := raw["assert"]
		if !ok {
			comparator, ok = raw["comparator"]
		}
		if !ok {
			return testcase.Validator{}, fmt.Errorf("%w: validator %v has no assert", failure.ErrFileFormat, raw)
		}
		v := testcase.Validator{
			Comparator: fmt.Sprint(comparator),
			Check:      fmt.Sprint(check),
			Expect:     raw["expect"],
		}
		if msg, ok := raw["msg"]; ok && msg != nil {
			v.Message = fmt.Sprint(msg)
		}
		return v, nil
	}

	if len(raw) != 1 {
		return testcase.Validator{}, fmt.Errorf("%w: validator %v must have a single comparator key", failure.ErrFileFormat, raw)
	}
	for comparator, args := range raw {
		list, ok := args.([]any)
		if !ok || len(list) < 2 || len(list) > 3 {
			return testcase.Validator{}, fmt.Errorf("%w: validator %q expects [check, expect] or [check, expect, msg]", failure.ErrFileFormat, comparator)
		}
		v := testcase.Validator{
			Comparator: comparator,
			Check:      fmt.Sprint(list[0]),
			Expect:     list[1],
		}
		if len(list) == 3 && list[2] != nil {
			v.Message = fmt.Sprint(list[2])
		}
		return v, nil
	}
	panic("unreachable")
}

// FindTestFiles returns the test case files under path, or path itself when
// it names a file.
func FindTestFiles(path string, skip func(name string) bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsTestFile(p) && (skip == nil || !skip(d.Name())) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
