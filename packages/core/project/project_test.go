package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hitrunner.config.json"), `{"timeout": 5000}`)
	testFile := filepath.Join(root, "testcases", "api", "login.yml")
	writeFile(t, testFile, "config: {name: x}\n")

	got, err := FindRoot(testFile)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	got, err = FindRoot(filepath.Dir(testFile))
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindRoot_DotEnv(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "TOKEN=abc\n")
	dir := filepath.Join(root, "cases")
	require.NoError(t, os.MkdirAll(dir, 0755))

	got, err := FindRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindRoot_Missing(t *testing.T) {
	_, err := FindRoot(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hitrunnerrc"), `{"timeout": 5000, "bail": true}`)
	writeFile(t, filepath.Join(root, ".env"), "BASE_URL=http://localhost:8080\nTOKEN=abc\n")
	writeFile(t, filepath.Join(root, "data", "users.csv"), "username,password\nalice,a1\nbob,b2\n")

	ctx, err := Load(root, WithFunctions(builtin.Functions{
		"double": func(args []any, _ map[string]any) (any, error) {
			n, _ := builtin.ToFloat(args[0])
			return n * 2, nil
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, root, ctx.RootDir)
	assert.Equal(t, filepath.Join(root, ".env"), ctx.DotEnvPath)
	assert.Equal(t, "abc", ctx.Env["TOKEN"])
	assert.Equal(t, 5000, ctx.Config.Timeout)
	assert.True(t, ctx.Config.GetBail())
	assert.Equal(t, root, ctx.Loader().Root())

	reg := ctx.Registry()
	assert.Equal(t, []string{"project", "parameterize", "environ", "extensions", "builtin", "globals"}, reg.Strategies())

	fn, err := reg.Resolve("double")
	require.NoError(t, err)
	got, err := fn([]any{21}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)

	fn, err = reg.Resolve("ENV")
	require.NoError(t, err)
	got, err = fn([]any{"BASE_URL"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", got)

	fn, err = reg.Resolve("P")
	require.NoError(t, err)
	got, err = fn([]any{"data/users.csv"}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = reg.Resolve("multipart_encoder")
	assert.NoError(t, err)
}

func TestLoad_DotEnvOverride(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "STAGE=default\n")
	writeFile(t, filepath.Join(root, "staging.env"), "STAGE=staging\nHITRUNNER_PROJECT_TEST_KEY=from-file\n")
	t.Setenv("HITRUNNER_PROJECT_TEST_KEY", "from-process")

	ctx, err := Load(root, WithDotEnv("staging.env"), WithExportEnv())
	require.NoError(t, err)
	assert.Equal(t, "staging", ctx.Env["STAGE"])
	assert.Equal(t, "from-process", os.Getenv("HITRUNNER_PROJECT_TEST_KEY"))

	_, err = Load(root, WithDotEnv("missing.env"))
	assert.Error(t, err)
}

func TestLoad_ConfigFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hitrunner.config.json"), `{"timeout": 5000}`)
	other := filepath.Join(t.TempDir(), "ci.json")
	writeFile(t, other, `{"timeout": 1000, "logDir": "ci-logs"}`)

	ctx, err := Load(root, WithConfigFile(other))
	require.NoError(t, err)
	assert.Equal(t, root, ctx.RootDir)
	assert.Equal(t, 1000, ctx.Config.Timeout)
	assert.Equal(t, "ci-logs", ctx.Config.LogDir)

	_, err = Load(root, WithConfigFile(filepath.Join(root, "missing.json")))
	assert.Error(t, err)
}
