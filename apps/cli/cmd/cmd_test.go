package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"user=alice", "n=3", "on=true", "empty=", "url=http://x/?a=b"})
	require.NoError(t, err)
	assert.Equal(t, testcase.Variables{
		"user":  "alice",
		"n":     3,
		"on":    true,
		"empty": "",
		"url":   "http://x/?a=b",
	}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)
}

func TestCLIVariables(t *testing.T) {
	t.Setenv("HITRUNNER_VAR_user", "env-user")
	t.Setenv("HITRUNNER_VAR_region", "eu")

	vars, err := cliVariables([]string{"user=flag-user"})
	require.NoError(t, err)
	assert.Equal(t, "flag-user", vars["user"])
	assert.Equal(t, "eu", vars["region"])
}

func TestIsWatchedFile(t *testing.T) {
	assert.True(t, isWatchedFile("cases/login.yml"))
	assert.True(t, isWatchedFile("cases/users.csv"))
	assert.True(t, isWatchedFile(".env"))
	assert.True(t, isWatchedFile("hitrunner.config.json"))
	assert.False(t, isWatchedFile("README.md"))
}

func TestCheckComparators(t *testing.T) {
	step := testcase.MustStep("s", &testcase.Request{Method: "GET", URL: "/"})
	step.Validators = []testcase.Validator{{Comparator: "equals", Check: "status_code", Expect: 200}}
	tc := &testcase.TestCase{Steps: []*testcase.Step{step}}
	assert.NoError(t, checkComparators(tc))

	bad := testcase.MustStep("b", &testcase.Request{Method: "GET", URL: "/"})
	bad.Validators = []testcase.Validator{{Comparator: "roughly", Check: "body"}}
	outer := testcase.MustStep("ref", &testcase.Reference{
		Path:     "inner.yml",
		TestCase: &testcase.TestCase{Steps: []*testcase.Step{bad}},
	})
	err := checkComparators(&testcase.TestCase{Steps: []*testcase.Step{outer}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roughly")
	assert.Contains(t, err.Error(), "inner.yml")
}

func TestRunOnce_JSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"q": r.URL.Query().Get("q")})
	}))
	defer server.Close()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hitrunner.config.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "search.yml"), []byte(`config:
  name: search $q
  base_url: `+server.URL+`
  parameters:
    q: [a, b]
teststeps:
  - name: query
    request:
      method: GET
      url: /
      params:
        q: $q
    validate:
      - eq: [body.q, $q]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.yml"), []byte("config: [\n"), 0644))

	prev := outputFlag
	outputFlag = "json"
	defer func() { outputFlag = prev }()

	var buf bytes.Buffer
	stats, err := runOnce(context.Background(), []string{root}, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Runs)
	assert.Equal(t, 2, stats.Passed)
	assert.Equal(t, 1, stats.Errors)
	assert.False(t, stats.Success())

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Len(t, out["runs"], 3)
}
