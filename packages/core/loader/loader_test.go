package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const loginCase = `
config:
  name: login
  base_url: https://api.example.com
  variables:
    user: alice
  export: [token]
teststeps:
  - name: login
    request:
      method: post
      url: /login
      json: {user: $user}
    extract:
      token: body.token
    validate:
      - eq: [status_code, 200]
`

func TestLoadTestCase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cases/login.yml", loginCase)
	path := writeFile(t, dir, "cases/orders.yaml", `
config:
  name: orders ${gen()}
  parameters:
    sku: [a, b]
    user-pass: [[u1, p1], [u2, p2]]
    app: ${gen_versions()}
  db:
    dsn: sqlite://orders.db
teststeps:
  - name: login first
    testcase: cases/login.yml
    export: [token]
  - name: list orders
    variables:
      auth: Bearer $token
    setup_hooks:
      - ${sleep(0)}
      - started: ${timestamp()}
    request:
      method: GET
      url: /orders
      headers:
        Authorization: $auth
      timeout: 1.5
    validate:
      - check: status_code
        assert: equal
        expect: 200
        msg: ok
      - contains: [body.items, sku-1, has sku]
    validate_script:
      - status_code == 200
    retry_times: 2
    retry_interval: 0.5
  - name: count rows
    sql_request:
      method: fetchone
      sql: SELECT count(*) AS n FROM orders
  - name: ping
    rpc_request:
      method: health.ping
      params: [1]
`)

	tc, err := New(dir).LoadTestCase(path)
	require.NoError(t, err)

	assert.Equal(t, "orders ${gen()}", tc.Config.Name)
	assert.Equal(t, "sqlite://orders.db", tc.Config.DB.DSN)
	assert.NotNil(t, tc.Config.Variables)
	require.Len(t, tc.Config.Parameters, 3)
	assert.Equal(t, []string{"sku", "user-pass", "app"}, []string{
		tc.Config.Parameters[0].Names, tc.Config.Parameters[1].Names, tc.Config.Parameters[2].Names,
	})
	assert.Equal(t, "${gen_versions()}", tc.Config.Parameters[2].Value)

	require.Len(t, tc.Steps, 4)

	ref, ok := tc.Steps[0].Payload().(*testcase.Reference)
	require.True(t, ok)
	assert.Equal(t, "login", ref.TestCase.Config.Name)
	assert.Equal(t, []string{"token"}, tc.Steps[0].Export)

	list := tc.Steps[1]
	req, ok := list.Payload().(*testcase.Request)
	require.True(t, ok)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, 1500*time.Millisecond, req.Timeout)
	assert.Equal(t, []testcase.Hook{{Expr: "${sleep(0)}"}, {Expr: "${timestamp()}", Assign: "started"}}, list.SetupHooks)
	assert.Equal(t, []testcase.Validator{
		{Comparator: "equal", Check: "status_code", Expect: 200, Message: "ok"},
		{Comparator: "contains", Check: "body.items", Expect: "sku-1", Message: "has sku"},
	}, list.Validators)
	assert.Equal(t, 2, list.RetryTimes)
	require.NotNil(t, list.RetryInterval)
	assert.Equal(t, 500*time.Millisecond, *list.RetryInterval)

	sql, ok := tc.Steps[2].Payload().(*testcase.SQLRequest)
	require.True(t, ok)
	assert.Equal(t, testcase.SQLFetchOne, sql.Method)

	assert.Equal(t, testcase.KindRPC, tc.Steps[3].Kind())
}

func TestLoadTestCase_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "case.json", "{\n\t\"config\": {\"name\": \"json case\"},\n\t\"teststeps\": [\n\t\t{\"name\": \"get\", \"request\": {\"method\": \"GET\", \"url\": \"/\"}}\n\t]\n}")

	tc, err := New(dir).LoadTestCase("case.json")
	require.NoError(t, err)
	assert.Equal(t, "json case", tc.Config.Name)
	assert.Equal(t, path, tc.Config.Path)
}

func TestLoadTestCase_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "two payloads",
			content: "config: {name: x}\nteststeps:\n  - name: s\n    request: {method: GET, url: /}\n    testcase: other.yml\n",
			wantErr: "exactly one of",
		},
		{
			name:    "no payload",
			content: "config: {name: x}\nteststeps:\n  - name: s\n",
			wantErr: "exactly one of",
		},
		{
			name:    "unknown field",
			content: "config: {name: x, colour: red}\nteststeps:\n  - name: s\n    request: {method: GET, url: /}\n",
			wantErr: "colour",
		},
		{
			name:    "bad method",
			content: "config: {name: x}\nteststeps:\n  - name: s\n    request: {method: FETCH, url: /}\n",
			wantErr: "invalid HTTP method",
		},
		{
			name:    "bad validator",
			content: "config: {name: x}\nteststeps:\n  - name: s\n    request: {method: GET, url: /}\n    validate:\n      - eq: [status_code]\n",
			wantErr: "expects [check, expect]",
		},
		{
			name:    "negative retry interval",
			content: "config: {name: x}\nteststeps:\n  - name: s\n    request: {method: GET, url: /}\n    retry_interval: -1\n",
			wantErr: "retry_interval",
		},
		{
			name:    "missing name",
			content: "config: {base_url: /}\nteststeps:\n  - name: s\n    request: {method: GET, url: /}\n",
			wantErr: "config.name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "case.yml", tt.content)

			_, err := New(dir).LoadTestCase(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrFileFormat)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTestCase_RetryInterval(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "case.yml", `
config: {name: retry}
teststeps:
  - name: no delay
    request: {method: GET, url: /}
    retry_times: 2
    retry_interval: 0
  - name: default delay
    request: {method: GET, url: /}
    retry_times: 2
`)

	tc, err := New(dir).LoadTestCase(path)
	require.NoError(t, err)
	require.NotNil(t, tc.Steps[0].RetryInterval, "an explicit zero is kept")
	assert.Equal(t, time.Duration(0), *tc.Steps[0].RetryInterval)
	assert.Nil(t, tc.Steps[1].RetryInterval)
}

func TestLoadTestCase_ReferenceCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", "config: {name: a}\nteststeps:\n  - name: to b\n    testcase: b.yml\n")
	writeFile(t, dir, "b.yml", "config: {name: b}\nteststeps:\n  - name: to a\n    testcase: a.yml\n")

	_, err := New(dir).LoadTestCase("a.yml")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrFileFormat)
	assert.Contains(t, err.Error(), "references itself")
}

func TestLoadTestCase_SharedReferenceLoadedOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.yml", loginCase)
	writeFile(t, dir, "main.yml", "config: {name: main}\nteststeps:\n  - name: one\n    testcase: login.yml\n  - name: two\n    testcase: login.yml\n")

	tc, err := New(dir).LoadTestCase("main.yml")
	require.NoError(t, err)
	first := tc.Steps[0].Payload().(*testcase.Reference).TestCase
	second := tc.Steps[1].Payload().(*testcase.Reference).TestCase
	assert.Same(t, first, second)
}

func TestLoadData_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data/accounts.csv", "username,password\ntest1,111111\n\ntest2,222222\ntest3\n")

	rows, err := New(dir).LoadData("data/accounts.csv")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"username": "test1", "password": "111111"},
		{"username": "test2", "password": "222222"},
		{"username": "test3", "password": ""},
	}, rows)
}

func TestLoadData_XLSX(t *testing.T) {
	dir := t.TempDir()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"username", "password"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"user1", "pw1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"user2", "pw2"}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "accounts.xlsx")))
	require.NoError(t, f.Close())

	rows, err := New(dir).LoadData("accounts.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"username": "user1", "password": "pw1"},
		{"username": "user2", "password": "pw2"},
	}, rows)
}

func TestLoadData_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.txt", "a,b\n")

	_, err := New(dir).LoadData("missing.csv")
	assert.Error(t, err)

	_, err = New(dir).LoadData("data.txt")
	assert.ErrorIs(t, err, failure.ErrFileFormat)
}

func TestFindTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", loginCase)
	writeFile(t, dir, "nested/b.json", "{}")
	writeFile(t, dir, "nested/notes.md", "# notes")
	writeFile(t, dir, ".hidden/c.yml", loginCase)
	writeFile(t, dir, "hitrunner.config.json", "{}")

	files, err := FindTestFiles(dir, func(name string) bool { return name == "hitrunner.config.json" })
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(dir, f)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.yml", "nested/b.json"}, rel)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.Contains(s, `"teststeps"`))
	assert.Contains(t, s, `"sql_request"`)
	assert.Contains(t, s, `"FETCHMANY"`)
}
