package builtin

import (
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
)

// Func is a callable usable from templates as ${name(args)}.
type Func func(args []any, kwargs map[string]any) (any, error)

// Functions maps function names to callables.
type Functions map[string]Func

// Strategy is one source of functions. Registry queries strategies in a
// fixed priority order and uses the first match.
type Strategy interface {
	Name() string
	Lookup(name string) (Func, bool)
}

type namedFunctions struct {
	name  string
	funcs Functions
}

// Named wraps a function map as a strategy.
func Named(name string, funcs Functions) Strategy {
	return &namedFunctions{name: name, funcs: funcs}
}

func (n *namedFunctions) Name() string { return n.name }

func (n *namedFunctions) Lookup(name string) (Func, bool) {
	fn, ok := n.funcs[name]
	return fn, ok
}

type lazyFunctions struct {
	name  string
	load  func() Functions
	once  sync.Once
	funcs Functions
}

// Lazy builds a strategy whose functions are only loaded on first lookup.
func Lazy(name string, load func() Functions) Strategy {
	return &lazyFunctions{name: name, load: load}
}

func (l *lazyFunctions) Name() string { return l.name }

func (l *lazyFunctions) Lookup(name string) (Func, bool) {
	l.once.Do(func() {
		l.funcs = l.load()
	})
	fn, ok := l.funcs[name]
	return fn, ok
}

// DataLoader loads a tabular data file (CSV, XLSX) into rows keyed by header.
type DataLoader func(path string) ([]map[string]any, error)

// EnvLookup reads an environment variable.
type EnvLookup func(name string) (string, bool)

type options struct {
	project    Functions
	dataLoader DataLoader
	envLookup  EnvLookup
	extensions func() Functions
}

type Option func(*options)

// WithProjectFunctions registers the functions a project defines. They take
// precedence over every other source.
func WithProjectFunctions(funcs Functions) Option {
	return func(o *options) {
		o.project = funcs
	}
}

// WithDataLoader backs the parameterize/P aliases.
func WithDataLoader(loader DataLoader) Option {
	return func(o *options) {
		o.dataLoader = loader
	}
}

// WithEnvLookup backs the environ/ENV aliases.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *options) {
		o.envLookup = lookup
	}
}

// WithExtensions registers extension helpers, loaded on first use.
func WithExtensions(load func() Functions) Option {
	return func(o *options) {
		o.extensions = load
	}
}

// Registry resolves function names through an ordered chain of strategies:
// project functions, parameterize/P, environ/ENV, extensions, the builtin
// library, then the global fallbacks.
type Registry struct {
	project    Functions
	strategies []Strategy
}

func NewRegistry(opts ...Option) *Registry {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	project := make(Functions, len(o.project))
	for k, v := range o.project {
		project[k] = v
	}

	r := &Registry{project: project}
	r.strategies = append(r.strategies, Named("project", project))
	if o.dataLoader != nil {
		r.strategies = append(r.strategies, Named("parameterize", parameterizeFunctions(o.dataLoader)))
	}
	r.strategies = append(r.strategies, Named("environ", environFunctions(o.envLookup)))
	if o.extensions != nil {
		r.strategies = append(r.strategies, Lazy("extensions", o.extensions))
	}
	r.strategies = append(r.strategies, Named("builtin", Library()), Named("globals", Globals()))
	return r
}

// Register adds a project-level function, overriding any other source.
func (r *Registry) Register(name string, fn Func) {
	r.project[name] = fn
}

func (r *Registry) Lookup(name string) (Func, bool) {
	for _, s := range r.strategies {
		if fn, ok := s.Lookup(name); ok {
			return fn, true
		}
	}
	return nil, false
}

// Resolve is Lookup that reports a missing function as ErrFunctionNotFound.
func (r *Registry) Resolve(name string) (Func, error) {
	if fn, ok := r.Lookup(name); ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %s", failure.ErrFunctionNotFound, name)
}

// Strategies returns the strategy names in lookup order.
func (r *Registry) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

func parameterizeFunctions(loader DataLoader) Functions {
	fn := func(args []any, _ map[string]any) (any, error) {
		if len(args) < 1 {
			return nil, failure.Params("parameterize() requires a file path")
		}
		rows, err := loader(fmt.Sprint(args[0]))
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			out[i] = row
		}
		return out, nil
	}
	return Functions{"parameterize": fn, "P": fn}
}

func environFunctions(lookup EnvLookup) Functions {
	if lookup == nil {
		lookup = osLookup
	}
	fn := func(args []any, _ map[string]any) (any, error) {
		if len(args) < 1 {
			return nil, failure.Params("environ() requires a variable name")
		}
		name := fmt.Sprint(args[0])
		if v, ok := lookup(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s", failure.ErrEnvNotFound, name)
	}
	return Functions{"environ": fn, "ENV": fn}
}

// Resolve lets a bare function map serve as a resolver.
func (f Functions) Resolve(name string) (Func, error) {
	if fn, ok := f[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%w: %s", failure.ErrFunctionNotFound, name)
}
