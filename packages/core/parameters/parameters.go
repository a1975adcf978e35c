// Package parameters expands a config's parameters block into the list of
// variable mappings a test case is run with, one run per combination.
package parameters

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/template"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

type Expander struct {
	engine *template.Engine
}

func NewExpander(engine *template.Engine) *Expander {
	return &Expander{engine: engine}
}

// Expand turns every parameter entry into a list of mappings and returns
// their cartesian product in declaration order, the first entry varying
// slowest. An empty definition yields no mappings.
//
// An entry's value is either a literal list (scalars, or tuples zipped
// against the names) or a template that evaluates to such a list, e.g.
// "${parameterize(accounts.csv)}".
func (x *Expander) Expand(params testcase.Parameters) ([]testcase.Variables, error) {
	if len(params) == 0 {
		return nil, nil
	}

	lists := make([][]testcase.Variables, 0, len(params))
	for _, p := range params {
		list, err := x.expandEntry(p)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return Product(lists...), nil
}

func (x *Expander) expandEntry(p testcase.Parameter) ([]testcase.Variables, error) {
	names := strings.Split(p.Names, "-")

	switch content := p.Value.(type) {
	case string:
		resolved, err := x.engine.Resolve(content, map[string]any{})
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Names, err)
		}
		items, ok := asList(resolved)
		if !ok {
			return nil, failure.Params("parameter %q: content should evaluate to a list, got %T from %s", p.Names, resolved, content)
		}
		return project(p.Names, names, items, true)
	default:
		items, ok := asList(content)
		if !ok {
			return nil, failure.Params("parameter %q: content should be a list or a template string, got %T", p.Names, content)
		}
		return project(p.Names, names, items, false)
	}
}

// project maps each item onto the parameter names. Maps are only accepted
// from generated content, where they are subset by name.
func project(entry string, names []string, items []any, generated bool) ([]testcase.Variables, error) {
	out := make([]testcase.Variables, 0, len(items))
	for _, item := range items {
		if m, ok := asMap(item); ok && generated {
			row := make(testcase.Variables, len(names))
			for _, name := range names {
				v, ok := m[name]
				if !ok {
					return nil, failure.Params("parameter %q: generated item %v has no key %q", entry, m, name)
				}
				row[name] = v
			}
			out = append(out, row)
			continue
		}

		if tuple, ok := asList(item); ok {
			if len(tuple) != len(names) {
				return nil, failure.Params("parameter %q: %d names but %d values in %v", entry, len(names), len(tuple), tuple)
			}
			row := make(testcase.Variables, len(names))
			for i, name := range names {
				row[name] = tuple[i]
			}
			out = append(out, row)
			continue
		}

		if len(names) != 1 {
			return nil, failure.Params("parameter %q: scalar value %v needs exactly one name", entry, item)
		}
		out = append(out, testcase.Variables{names[0]: item})
	}
	return out, nil
}

// Product merges one mapping from each list per combination, nested-loop
// order with the first list outermost.
func Product(lists ...[]testcase.Variables) []testcase.Variables {
	if len(lists) == 0 {
		return nil
	}
	result := []testcase.Variables{{}}
	for _, list := range lists {
		next := make([]testcase.Variables, 0, len(result)*len(list))
		for _, prefix := range result {
			for _, item := range list {
				next = append(next, testcase.Merge(prefix, item))
			}
		}
		result = next
	}
	return result
}

func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
