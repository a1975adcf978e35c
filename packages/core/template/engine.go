package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"gopkg.in/yaml.v3"
)

// FunctionResolver finds the callable behind a ${name(...)} reference.
// *builtin.Registry and builtin.Functions both satisfy it.
type FunctionResolver interface {
	Resolve(name string) (builtin.Func, error)
}

// Engine resolves templates against a variable mapping. It holds no
// per-run state and never caches function results.
type Engine struct {
	funcs FunctionResolver
}

// New returns an engine that resolves functions through funcs. A nil
// resolver falls back to a registry with only the builtin sources.
func New(funcs FunctionResolver) *Engine {
	if funcs == nil {
		funcs = builtin.NewRegistry()
	}
	return &Engine{funcs: funcs}
}

// Resolve resolves strings as templates, slices element-wise and maps key
// and value alike. Other values are returned unchanged.
func (e *Engine) Resolve(data any, vars map[string]any) (any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		return e.ResolveString(v, vars)
	case []any:
		return e.resolveSlice(len(v), func(i int) any { return v[i] }, vars)
	case map[string]any:
		return e.resolveMap(v, vars)
	case []byte:
		return v, nil
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return e.resolveSlice(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, vars)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return data, nil
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return e.resolveMap(m, vars)
	}
	return data, nil
}

func (e *Engine) resolveSlice(n int, at func(int) any, vars map[string]any) ([]any, error) {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := e.Resolve(at(i), vars)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// resolveMap walks keys in sorted order so that keys colliding after
// resolution overwrite deterministically.
func (e *Engine) resolveMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		rk, err := e.ResolveString(k, vars)
		if err != nil {
			return nil, err
		}
		rv, err := e.Resolve(m[k], vars)
		if err != nil {
			return nil, err
		}
		out[Stringify(rk)] = rv
	}
	return out, nil
}

// ResolveString substitutes every variable and function call in raw. When
// raw is exactly one variable or one call, the value is returned with its
// own type; otherwise the pieces are concatenated into a string.
func (e *Engine) ResolveString(raw string, vars map[string]any) (any, error) {
	if !strings.Contains(raw, "$") {
		return raw, nil
	}

	segments := Parse(raw)
	if len(segments) == 1 {
		switch segments[0].Kind {
		case SegmentVariable, SegmentFunction:
			return e.evaluate(segments[0], vars)
		}
	}

	var b strings.Builder
	for _, seg := range segments {
		switch seg.Kind {
		case SegmentLiteral:
			b.WriteString(seg.Raw)
		case SegmentEscape:
			b.WriteByte('$')
		default:
			v, err := e.evaluate(seg, vars)
			if err != nil {
				return nil, err
			}
			b.WriteString(Stringify(v))
		}
	}
	return b.String(), nil
}

func (e *Engine) evaluate(seg Segment, vars map[string]any) (any, error) {
	if seg.Kind == SegmentVariable {
		return LookupVariable(seg.Name, vars)
	}
	return e.call(seg.Name, seg.Args, vars)
}

func (e *Engine) call(name, rawArgs string, vars map[string]any) (any, error) {
	fn, err := e.funcs.Resolve(name)
	if err != nil {
		return nil, err
	}

	args, kwargs := ParseArgs(rawArgs)
	resolvedArgs, err := e.resolveSlice(len(args), func(i int) any { return args[i] }, vars)
	if err != nil {
		return nil, err
	}
	resolvedKwargs, err := e.resolveMap(kwargs, vars)
	if err != nil {
		return nil, err
	}

	result, err := fn(resolvedArgs, resolvedKwargs)
	if err != nil {
		return nil, fmt.Errorf("call function %s(%s): %w", name, rawArgs, err)
	}
	return result, nil
}

// ParseArgs splits a function's argument text on commas. "key=value" parts
// become keyword arguments. Every value goes through ParseLiteral.
func ParseArgs(raw string) ([]any, map[string]any) {
	args := []any{}
	kwargs := map[string]any{}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, kwargs
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if key, value, ok := strings.Cut(part, "="); ok {
			kwargs[strings.TrimSpace(key)] = ParseLiteral(strings.TrimSpace(value))
			continue
		}
		args = append(args, ParseLiteral(part))
	}
	return args, kwargs
}

// ParseLiteral turns numeric, boolean and null literals into typed values.
// Anything else, including templates like "$var", stays a string.
func ParseLiteral(s string) any {
	switch s {
	case "":
		return s
	case "None":
		return nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case nil:
		return nil
	case int, int64, uint64, float64, bool:
		return v
	}
	return s
}

// Stringify renders a substituted value inside a larger string. Maps and
// slices are rendered as JSON, nil as an empty string.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}
