package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// comparator reports whether actual satisfies expected, and why not.
type comparator func(e *Evaluator, actual, expected any) (bool, string)

var comparators = map[string]comparator{
	"eq":            (*Evaluator).equals,
	"not_equal":     negate((*Evaluator).equals, "expected not to equal %v"),
	"lt":            numeric("<"),
	"le":            numeric("<="),
	"gt":            numeric(">"),
	"ge":            numeric(">="),
	"string_equals": (*Evaluator).stringEquals,
	"contains":      (*Evaluator).contains,
	"not_contains":  negate((*Evaluator).contains, "expected not to contain %v"),
	"contained_by":  (*Evaluator).containedBy,
	"startswith":    (*Evaluator).startsWith,
	"endswith":      (*Evaluator).endsWith,
	"regex_match":   (*Evaluator).matches,
	"len_eq":        length("=="),
	"len_gt":        length(">"),
	"len_ge":        length(">="),
	"len_lt":        length("<"),
	"len_le":        length("<="),
	"type_match":    (*Evaluator).typeCheck,
	"exists":        (*Evaluator).exists,
	"not_exists":    negate((*Evaluator).exists, "expected not to exist"),
	"json_schema":   (*Evaluator).schema,
}

var aliases = map[string]string{
	"equal":                    "eq",
	"equals":                   "eq",
	"==":                       "eq",
	"ne":                       "not_equal",
	"not_equals":               "not_equal",
	"!=":                       "not_equal",
	"less_than":                "lt",
	"<":                        "lt",
	"less_or_equals":           "le",
	"less_than_or_equals":      "le",
	"<=":                       "le",
	"greater_than":             "gt",
	">":                        "gt",
	"greater_or_equals":        "ge",
	"greater_than_or_equals":   "ge",
	">=":                       "ge",
	"str_eq":                   "string_equals",
	"starts_with":              "startswith",
	"ends_with":                "endswith",
	"matches":                  "regex_match",
	"length_equal":             "len_eq",
	"length_equals":            "len_eq",
	"count_eq":                 "len_eq",
	"length_greater_than":      "len_gt",
	"length_greater_or_equals": "len_ge",
	"length_less_than":         "len_lt",
	"length_less_or_equals":    "len_le",
	"type":                     "type_match",
	"schema":                   "json_schema",
}

// Canonical returns the canonical comparator name for name or one of its
// aliases, and whether it is known.
func Canonical(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	_, ok := comparators[name]
	return name, ok
}

func negate(c comparator, format string) comparator {
	return func(e *Evaluator, actual, expected any) (bool, string) {
		if passed, _ := c(e, actual, expected); passed {
			return false, fmt.Sprintf(format, expected)
		}
		return true, ""
	}
}

func numeric(op string) comparator {
	return func(e *Evaluator, actual, expected any) (bool, string) {
		return e.compareNumeric(actual, expected, op)
	}
}

func length(op string) comparator {
	return func(e *Evaluator, actual, expected any) (bool, string) {
		return e.length(actual, expected, op)
	}
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if isScalar(actual) && isScalar(expected) {
		if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
			return true, ""
		}
	} else if jsonEqual(actual, expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func (e *Evaluator) stringEquals(actual, expected any) (bool, string) {
	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v', got '%v'", expected, actual)
}

func (e *Evaluator) compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

// contains checks list membership, map keys, or substrings, depending on
// what actual is.
func (e *Evaluator) contains(actual, expected any) (bool, string) {
	if items, ok := asSlice(actual); ok {
		for _, item := range items {
			if passed, _ := e.equals(item, expected); passed {
				return true, ""
			}
		}
		return false, fmt.Sprintf("expected %v to include %v", actual, expected)
	}
	if m, ok := actual.(map[string]any); ok {
		if _, ok := m[fmt.Sprintf("%v", expected)]; ok {
			return true, ""
		}
		return false, fmt.Sprintf("expected object to have key %v", expected)
	}

	if actual == nil {
		return false, fmt.Sprintf("expected to contain '%v', got nothing", expected)
	}
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.Contains(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func (e *Evaluator) containedBy(actual, expected any) (bool, string) {
	if passed, _ := e.contains(expected, actual); passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasPrefix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) endsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasSuffix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	pattern := fmt.Sprintf("%v", expected)

	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if re.MatchString(actualStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func (e *Evaluator) exists(actual, _ any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		rv := reflect.ValueOf(actual)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return rv.Len()
		default:
			return -1
		}
	}
}

func (e *Evaluator) length(actual, expected any, op string) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	var passed bool
	switch op {
	case "==":
		passed = actualLen == expectedLen
	case ">":
		passed = actualLen > expectedLen
	case ">=":
		passed = actualLen >= expectedLen
	case "<":
		passed = actualLen < expectedLen
	case "<=":
		passed = actualLen <= expectedLen
	}
	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %s %d, got %d", op, expectedLen, actualLen)
}

// typeNames maps the accepted type names onto JSON types.
var typeNames = map[string]string{
	"null": "null", "None": "null", "NoneType": "null",
	"boolean": "boolean", "bool": "boolean",
	"number": "number", "int": "integer", "integer": "integer", "float": "float",
	"string": "string", "str": "string",
	"array": "array", "list": "array", "tuple": "array",
	"object": "object", "dict": "object", "map": "object",
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	want, ok := typeNames[expectedType]
	if !ok {
		return false, fmt.Sprintf("unknown type %q", expectedType)
	}

	got := jsonType(actual)
	switch {
	case want == got:
		return true, ""
	case want == "number" && (got == "integer" || got == "float"):
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, got)
}

func jsonType(v any) string {
	switch n := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32:
		return floatType(float64(n))
	case float64:
		return floatType(n)
	case map[string]any:
		return "object"
	}
	if _, ok := asSlice(v); ok {
		return "array"
	}
	return reflect.TypeOf(v).String()
}

// floatType treats whole JSON numbers as integers, since decoded JSON has
// no separate integer type.
func floatType(f float64) string {
	if f == float64(int64(f)) {
		return "integer"
	}
	return "float"
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// schema validates actual against a JSON schema given inline (as a mapping)
// or as a file path relative to the project root.
func (e *Evaluator) schema(actual, expected any) (bool, string) {
	var schemaLoader gojsonschema.JSONLoader
	if inline, ok := expected.(map[string]any); ok {
		schemaLoader = gojsonschema.NewGoLoader(inline)
	} else {
		schemaPath := fmt.Sprintf("%v", expected)
		if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
			schemaPath = filepath.Join(e.baseDir, schemaPath)
		}

		// Validate path doesn't escape base directory (prevent path traversal)
		if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
			return false, err.Error()
		}

		schemaData, err := os.ReadFile(schemaPath)
		if err != nil {
			return false, fmt.Sprintf("failed to read schema file: %v", err)
		}
		schemaLoader = gojsonschema.NewBytesLoader(schemaData)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(actualJSON))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errors, "; "))
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func jsonEqual(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var va, vb any
	if json.Unmarshal(ja, &va) != nil || json.Unmarshal(jb, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}
