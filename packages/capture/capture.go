package capture

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Subject is a transport result that extraction rules and validators query
// by field path, e.g. "status_code", "headers.Content-Type" or
// "body.items.0.id".
type Subject interface {
	Field(path string) (any, bool)
	Env() map[string]any
}

// Document is a Subject backed by a map of top-level fields. The part of a
// path after the first segment is a gjson path into that field's value.
type Document map[string]any

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

func (d Document) Field(path string) (any, bool) {
	path = strings.TrimPrefix(convertBracketNotation(path), "$.")
	head, rest, _ := strings.Cut(path, ".")
	value, ok := d[head]
	if !ok {
		return nil, false
	}
	if rest == "" {
		return value, true
	}
	return Lookup(value, rest)
}

func (d Document) Env() map[string]any {
	return d
}

// Lookup applies a gjson path to a decoded value. Single-segment lookups on
// string-keyed maps fall back to a case-insensitive key match, so header
// names can be written in any case.
func Lookup(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}
	switch v := value.(type) {
	case map[string]string:
		return lookupFold(v, path)
	case string:
		if !gjson.Valid(v) {
			return nil, false
		}
		return result(gjson.Get(v, path))
	case []byte:
		if !gjson.ValidBytes(v) {
			return nil, false
		}
		return result(gjson.GetBytes(v, path))
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	if got, ok := result(gjson.GetBytes(raw, path)); ok {
		return got, true
	}
	if m, ok := value.(map[string]any); ok {
		return lookupFold(m, path)
	}
	return nil, false
}

func result(r gjson.Result) (any, bool) {
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

func lookupFold[V any](m map[string]V, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// ExtractAll evaluates every extraction rule against subject. A rule whose
// path does not exist is an error naming the variable.
func ExtractAll(subject Subject, rules map[string]string) (map[string]any, error) {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]any, len(rules))
	for _, name := range names {
		value, ok := subject.Field(rules[name])
		if !ok {
			return nil, fmt.Errorf("extract %s: field %q not found", name, rules[name])
		}
		results[name] = value
	}
	return results, nil
}
