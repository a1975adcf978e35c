package template

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
)

// LookupVariable returns the value bound to name.
func LookupVariable(name string, vars map[string]any) (any, error) {
	v, ok := vars[name]
	if !ok {
		return nil, failure.VariableNotFound(name)
	}
	return v, nil
}

// ExtractVariables collects every variable name referenced anywhere in
// content, including inside function arguments. Strings, slices and maps are
// walked recursively; other values reference nothing. The result is sorted.
func ExtractVariables(content any) []string {
	seen := make(map[string]struct{})
	extract(content, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func extract(content any, seen map[string]struct{}) {
	switch v := content.(type) {
	case nil:
		return
	case string:
		extractString(v, seen)
		return
	case []any:
		for _, item := range v {
			extract(item, seen)
		}
		return
	case map[string]any:
		for k, item := range v {
			extractString(k, seen)
			extract(item, seen)
		}
		return
	}

	rv := reflect.ValueOf(content)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < rv.Len(); i++ {
			extract(rv.Index(i).Interface(), seen)
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			extract(iter.Key().Interface(), seen)
			extract(iter.Value().Interface(), seen)
		}
	}
}

func extractString(s string, seen map[string]struct{}) {
	for _, seg := range Parse(s) {
		switch seg.Kind {
		case SegmentVariable:
			seen[seg.Name] = struct{}{}
		case SegmentFunction:
			extractString(seg.Args, seen)
		}
	}
}

// ResolveVariables resolves a mapping whose values may reference each other.
//
// Each pass resolves the names whose references are all resolved already and
// defers the rest. A name referencing itself, or a name absent from raw,
// fails immediately with ErrVariableNotFound. A pass that makes no progress
// means the remaining names depend on each other and fails with a
// *failure.CycleError.
func (e *Engine) ResolveVariables(raw map[string]any) (map[string]any, error) {
	return e.ResolveVariablesWith(raw, nil)
}

// ResolveVariablesWith resolves raw on top of a scope that is resolved
// already. Values in resolved are taken as they are and never parsed again,
// so a "$" inside them stays literal. A name present in both comes from raw.
// The result holds both mappings.
func (e *Engine) ResolveVariablesWith(raw, resolved map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	parsed := make(map[string]any, len(raw)+len(resolved))
	for name, value := range resolved {
		if _, shadowed := raw[name]; !shadowed {
			parsed[name] = value
		}
	}
	known := func(name string) bool {
		if _, ok := raw[name]; ok {
			return true
		}
		_, ok := parsed[name]
		return ok
	}

	done := make(map[string]struct{}, len(raw))
	for len(done) != len(raw) {
		progress := false
		for _, name := range names {
			if _, ok := done[name]; ok {
				continue
			}

			value := raw[name]
			refs := ExtractVariables(value)

			var undefined []string
			for _, ref := range refs {
				if ref == name {
					return nil, fmt.Errorf("%w: %s references itself", failure.ErrVariableNotFound, name)
				}
				if !known(ref) {
					undefined = append(undefined, ref)
				}
			}
			if len(undefined) > 0 {
				return nil, failure.VariableNotFound(undefined...)
			}

			out, err := e.Resolve(value, parsed)
			if err != nil {
				if errors.Is(err, failure.ErrVariableNotFound) {
					// depends on a name later in this pass
					continue
				}
				return nil, fmt.Errorf("resolving variable %s: %w", name, err)
			}
			parsed[name] = out
			done[name] = struct{}{}
			progress = true
		}

		if !progress {
			var pending []string
			for _, name := range names {
				if _, ok := done[name]; !ok {
					pending = append(pending, name)
				}
			}
			return nil, &failure.CycleError{Names: pending}
		}
	}
	return parsed, nil
}
