package template

import (
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFunctions() builtin.Functions {
	return builtin.Functions{
		"add_one": func(args []any, _ map[string]any) (any, error) {
			return args[0].(int) + 1, nil
		},
		"sum_two": func(args []any, _ map[string]any) (any, error) {
			return args[0].(int) + args[1].(int), nil
		},
		"echo_kwargs": func(_ []any, kwargs map[string]any) (any, error) {
			return kwargs, nil
		},
		"fail": func(_ []any, _ map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	}
}

func TestEngine_ResolveString(t *testing.T) {
	e := New(builtin.NewRegistry(builtin.WithProjectFunctions(testFunctions())))

	tests := []struct {
		name     string
		raw      string
		vars     map[string]any
		expected any
	}{
		{"no dollar", "hello world", nil, "hello world"},
		{"escape", "$$", nil, "$"},
		{"escape followed by literal", "$$x", map[string]any{}, "$x"},
		{"whole variable keeps type", "$n", map[string]any{"n": 3}, 3},
		{"braced variable keeps type", "${items}", map[string]any{"items": []any{1, 2}}, []any{1, 2}},
		{"whole function keeps type", "${add_one($n)}", map[string]any{"n": 3}, 4},
		{"function in text", "val=${add_one($n)}", map[string]any{"n": 3}, "val=4"},
		{"literal args", "${sum_two(1, 2)}", nil, 3},
		{"two variables", "$a-$b", map[string]any{"a": "x", "b": 2}, "x-2"},
		{"map in text renders json", "body=$m", map[string]any{"m": map[string]any{"k": 1}}, `body={"k":1}`},
		{"nil in text renders empty", "[$v]", map[string]any{"v": nil}, "[]"},
		{"kwargs", "${echo_kwargs(a=1, b=$x)}", map[string]any{"x": "y"}, map[string]any{"a": 1, "b": "y"}},
		{"builtin fallback", "${len($s)}", map[string]any{"s": "abcd"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ResolveString(tt.raw, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEngine_ResolveString_Errors(t *testing.T) {
	e := New(testFunctions())

	_, err := e.ResolveString("/api/$missing", map[string]any{})
	assert.ErrorIs(t, err, failure.ErrVariableNotFound)

	_, err = e.ResolveString("${nope()}", nil)
	assert.ErrorIs(t, err, failure.ErrFunctionNotFound)

	_, err = e.ResolveString("${fail()}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEngine_Resolve_Structures(t *testing.T) {
	e := New(testFunctions())
	vars := map[string]any{"name": "alice", "id": 7, "key": "user"}

	got, err := e.Resolve(map[string]any{
		"$key": "$name",
		"list": []any{"$id", "id-$id", true, nil},
		"n":    1.5,
	}, vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"user": "alice",
		"list": []any{7, "id-7", true, nil},
		"n":    1.5,
	}, got)

	headers, err := e.Resolve(map[string]string{"X-User": "$name"}, vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"X-User": "alice"}, headers)
}

func TestEngine_Resolve_NoDollarIsIdentity(t *testing.T) {
	e := New(nil)
	for _, s := range []string{"", " padded ", "a=b,c", "{not a template}", "tab\tand\nnewline"} {
		got, err := e.Resolve(s, nil)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestEngine_ResolveVariables(t *testing.T) {
	e := New(testFunctions())

	t.Run("forward reference", func(t *testing.T) {
		got, err := e.ResolveVariables(map[string]any{"a": "$b", "b": "1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": "1", "b": "1"}, got)
	})

	t.Run("chain through functions", func(t *testing.T) {
		got, err := e.ResolveVariables(map[string]any{
			"c": "${sum_two($a, $b)}",
			"a": 1,
			"b": "${add_one($a)}",
			"d": "total=$c",
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3, "d": "total=3"}, got)
	})

	t.Run("self reference", func(t *testing.T) {
		_, err := e.ResolveVariables(map[string]any{"a": "$a"})
		assert.ErrorIs(t, err, failure.ErrVariableNotFound)
	})

	t.Run("self reference in list", func(t *testing.T) {
		_, err := e.ResolveVariables(map[string]any{"key": []any{"$key", 2}})
		assert.ErrorIs(t, err, failure.ErrVariableNotFound)
	})

	t.Run("undefined reference", func(t *testing.T) {
		_, err := e.ResolveVariables(map[string]any{"varA": "123$varB", "varB": "456$varC"})
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrVariableNotFound)
		assert.Contains(t, err.Error(), "varC")
	})

	t.Run("mutual cycle terminates", func(t *testing.T) {
		_, err := e.ResolveVariables(map[string]any{"a": "$b", "b": "$a", "c": 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, failure.ErrVariableCycle)
		assert.ErrorIs(t, err, failure.ErrVariableNotFound)

		var cycle *failure.CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"a", "b"}, cycle.Names)
	})

	t.Run("function errors are not deferred", func(t *testing.T) {
		_, err := e.ResolveVariables(map[string]any{"a": "${fail()}"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, failure.ErrVariableCycle)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := e.ResolveVariables(map[string]any{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEngine_ResolveVariablesWith(t *testing.T) {
	e := New(testFunctions())

	t.Run("resolved values stay literal", func(t *testing.T) {
		got, err := e.ResolveVariablesWith(
			map[string]any{"greeting": "hi $name"},
			map[string]any{"name": "bob", "price": "$amount", "schema": map[string]any{"$ref": "#/a"}},
		)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"greeting": "hi bob",
			"name":     "bob",
			"price":    "$amount",
			"schema":   map[string]any{"$ref": "#/a"},
		}, got)
	})

	t.Run("raw shadows resolved", func(t *testing.T) {
		got, err := e.ResolveVariablesWith(
			map[string]any{"a": "${add_one($b)}", "b": 10},
			map[string]any{"a": 1, "b": 2},
		)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 11, "b": 10}, got)
	})

	t.Run("undefined reference", func(t *testing.T) {
		_, err := e.ResolveVariablesWith(map[string]any{"a": "$missing"}, map[string]any{"b": 1})
		assert.ErrorIs(t, err, failure.ErrVariableNotFound)
	})

	t.Run("self reference over resolved name", func(t *testing.T) {
		_, err := e.ResolveVariablesWith(map[string]any{"a": "$a"}, map[string]any{"a": 1})
		assert.ErrorIs(t, err, failure.ErrVariableNotFound)
	})
}

func TestParseArgs(t *testing.T) {
	args, kwargs := ParseArgs("")
	assert.Empty(t, args)
	assert.Empty(t, kwargs)

	args, kwargs = ParseArgs("5")
	assert.Equal(t, []any{5}, args)
	assert.Empty(t, kwargs)

	args, kwargs = ParseArgs("1, 2, a=3, b=4")
	assert.Equal(t, []any{1, 2}, args)
	assert.Equal(t, map[string]any{"a": 3, "b": 4}, kwargs)

	args, _ = ParseArgs("$var, account.csv, 1.5, true, None")
	assert.Equal(t, []any{"$var", "account.csv", 1.5, true, nil}, args)
}
