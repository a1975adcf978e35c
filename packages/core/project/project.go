// Package project holds the per-invocation project context: the root
// directory, the .env values, the tool configuration and any functions the
// host registers. A Context is created once by the caller and passed to
// every runner; nothing in it is global.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"github.com/abdul-hamid-achik/hitrunner/packages/builtin/uploader"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/config"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/env"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/loader"
)

const DotEnvFile = ".env"

type Context struct {
	RootDir    string
	DotEnvPath string
	Env        map[string]string
	Config     *config.Config
	Functions  builtin.Functions

	loader *loader.Loader
}

type options struct {
	dotEnvPath string
	configPath string
	functions  builtin.Functions
	export     bool
}

type Option func(*options)

// WithDotEnv loads the given env file instead of <root>/.env.
func WithDotEnv(path string) Option {
	return func(o *options) {
		o.dotEnvPath = path
	}
}

// WithConfigFile reads the tool configuration from path instead of looking
// for a config file in the project root.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithFunctions registers project functions, which take precedence over
// every builtin of the same name.
func WithFunctions(funcs builtin.Functions) Option {
	return func(o *options) {
		o.functions = funcs
	}
}

// WithExportEnv copies .env values into the process environment for keys
// that are not already set.
func WithExportEnv() Option {
	return func(o *options) {
		o.export = true
	}
}

// Load builds the context for the test file or directory at path.
func Load(path string, opts ...Option) (*Context, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	root, err := FindRoot(path)
	if err != nil {
		return nil, err
	}

	var fileCfg *config.Config
	if o.configPath != "" {
		fileCfg, err = config.LoadConfig(o.configPath)
	} else {
		fileCfg, err = config.FindAndLoadConfig(root)
	}
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig().Merge(fileCfg)

	ctx := &Context{
		RootDir:   root,
		Env:       map[string]string{},
		Config:    cfg,
		Functions: o.functions,
		loader:    loader.New(root),
	}

	dotenv := o.dotEnvPath
	if dotenv == "" {
		dotenv = filepath.Join(root, DotEnvFile)
		if _, err := os.Stat(dotenv); err != nil {
			dotenv = ""
		}
	} else if !filepath.IsAbs(dotenv) {
		dotenv = filepath.Join(root, dotenv)
	}
	if dotenv != "" {
		load := env.LoadDotEnv
		if o.export {
			load = env.LoadAndExportDotEnv
		}
		values, err := load(dotenv)
		if err != nil {
			return nil, err
		}
		ctx.Env = values
		ctx.DotEnvPath = dotenv
	}

	return ctx, nil
}

// FindRoot walks upward from path to the nearest directory holding a config
// file or a .env file. Without one, the working directory is the root.
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", path, err)
	}
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		if config.FindConfigFile(dir) != "" {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, DotEnvFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return os.Getwd()
}

// Loader returns the test-case loader rooted at the project directory.
// It memoizes loaded files for the life of the context.
func (c *Context) Loader() *loader.Loader {
	return c.loader
}

// Registry builds the function registry for a run: project functions first,
// then parameterize/P over the project's data files, environ/ENV over .env
// and the process environment, the multipart helpers, and the builtins.
func (c *Context) Registry() *builtin.Registry {
	return builtin.NewRegistry(
		builtin.WithProjectFunctions(c.Functions),
		builtin.WithDataLoader(c.loader.LoadData),
		builtin.WithEnvLookup(env.Lookup(c.Env)),
		builtin.WithExtensions(func() builtin.Functions {
			return uploader.Functions(c.RootDir)
		}),
	)
}
