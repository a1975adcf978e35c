package parameters

import (
	"testing"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/template"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExpander() *Expander {
	registry := builtin.NewRegistry(
		builtin.WithProjectFunctions(builtin.Functions{
			"gen_app_version": func(_ []any, _ map[string]any) (any, error) {
				return []map[string]any{{"app_version": "2.8.5"}, {"app_version": "2.8.6"}}, nil
			},
			"get_account": func(_ []any, _ map[string]any) (any, error) {
				return [][]any{{"user1", "111111"}, {"user2", "222222"}}, nil
			},
			"get_user_agent": func(_ []any, _ map[string]any) (any, error) {
				return []string{"iOS/10.1", "iOS/10.2"}, nil
			},
			"not_a_list": func(_ []any, _ map[string]any) (any, error) {
				return "nope", nil
			},
		}),
		builtin.WithDataLoader(func(string) ([]map[string]any, error) {
			return []map[string]any{
				{"username": "test1", "password": "111111", "extra": "x"},
				{"username": "test2", "password": "222222", "extra": "y"},
			}, nil
		}),
	)
	return NewExpander(template.New(registry))
}

func TestExpand_CartesianOrder(t *testing.T) {
	got, err := newExpander().Expand(testcase.Parameters{
		{Names: "a", Value: []any{1, 2}},
		{Names: "b", Value: []any{10, 20}},
	})
	require.NoError(t, err)
	assert.Equal(t, []testcase.Variables{
		{"a": 1, "b": 10},
		{"a": 1, "b": 20},
		{"a": 2, "b": 10},
		{"a": 2, "b": 20},
	}, got)
}

func TestExpand_Tuples(t *testing.T) {
	got, err := newExpander().Expand(testcase.Parameters{
		{Names: "username-password", Value: []any{[]any{"user1", "111111"}, []any{"user2", "222222"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []testcase.Variables{
		{"username": "user1", "password": "111111"},
		{"username": "user2", "password": "222222"},
	}, got)
}

func TestExpand_Generated(t *testing.T) {
	got, err := newExpander().Expand(testcase.Parameters{
		{Names: "user_agent", Value: "${get_user_agent()}"},
		{Names: "username-password", Value: "${parameterize(account.csv)}"},
		{Names: "app_version", Value: "${gen_app_version()}"},
	})
	require.NoError(t, err)
	require.Len(t, got, 8)
	assert.Equal(t, testcase.Variables{
		"user_agent": "iOS/10.1", "username": "test1", "password": "111111", "app_version": "2.8.5",
	}, got[0])
	assert.Equal(t, testcase.Variables{
		"user_agent": "iOS/10.2", "username": "test2", "password": "222222", "app_version": "2.8.6",
	}, got[7])
	assert.NotContains(t, got[0], "extra")

	accounts, err := newExpander().Expand(testcase.Parameters{
		{Names: "username-password", Value: "${get_account()}"},
	})
	require.NoError(t, err)
	assert.Equal(t, "user2", accounts[1]["username"])
}

func TestExpand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params testcase.Parameters
	}{
		{"tuple length mismatch", testcase.Parameters{{Names: "a-b", Value: []any{[]any{1}}}}},
		{"scalar with two names", testcase.Parameters{{Names: "a-b", Value: []any{1}}}},
		{"not a list", testcase.Parameters{{Names: "a", Value: 5}}},
		{"generated not a list", testcase.Parameters{{Names: "a", Value: "${not_a_list()}"}}},
		{"generated missing key", testcase.Parameters{{Names: "username-token", Value: "${P(account.csv)}"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExpander().Expand(tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrParams)
			assert.Contains(t, err.Error(), tt.params[0].Names)
		})
	}
}

func TestExpand_Empty(t *testing.T) {
	got, err := newExpander().Expand(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
