package builtin

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// Globals returns the general-purpose fallbacks consulted last.
func Globals() Functions {
	return Functions{
		"len":   globalLen,
		"str":   globalStr,
		"int":   globalInt,
		"float": globalFloat,
		"bool":  globalBool,
		"max":   globalMax,
		"min":   globalMin,
		"sum":   globalSum,
		"abs":   globalAbs,
		"round": globalRound,
		"upper": globalUpper,
		"lower": globalLower,
	}
}

func osLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

func one(name string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s() takes exactly one argument (%d given)", name, len(args))
	}
	return args[0], nil
}

func globalLen(args []any, _ map[string]any) (any, error) {
	v, err := one("len", args)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, fmt.Errorf("len(): object of type %T has no length", v)
}

func globalStr(args []any, _ map[string]any) (any, error) {
	v, err := one("str", args)
	if err != nil {
		return nil, err
	}
	return fmt.Sprint(v), nil
}

func globalInt(args []any, _ map[string]any) (any, error) {
	v, err := one("int", args)
	if err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("int(): %w", err)
		}
		return n, nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return nil, fmt.Errorf("int(): unsupported type %T", v)
	}
	return int(f), nil
}

func globalFloat(args []any, _ map[string]any) (any, error) {
	v, err := one("float", args)
	if err != nil {
		return nil, err
	}
	f, ok := ToFloat(v)
	if !ok {
		return nil, fmt.Errorf("float(): unsupported value %v", v)
	}
	return f, nil
}

func globalBool(args []any, _ map[string]any) (any, error) {
	v, err := one("bool", args)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return false, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0, nil
	}
	f, _ := ToFloat(v)
	return f != 0, nil
}

func numbers(name string, args []any) ([]float64, error) {
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			args = list
		}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s() arg is an empty sequence", name)
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := ToFloat(a)
		if !ok {
			return nil, fmt.Errorf("%s(): %v is not a number", name, a)
		}
		out[i] = f
	}
	return out, nil
}

// number returns f as an int when it has no fractional part.
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int(f)
	}
	return f
}

func globalMax(args []any, _ map[string]any) (any, error) {
	nums, err := numbers("max", args)
	if err != nil {
		return nil, err
	}
	m := nums[0]
	for _, n := range nums[1:] {
		m = math.Max(m, n)
	}
	return number(m), nil
}

func globalMin(args []any, _ map[string]any) (any, error) {
	nums, err := numbers("min", args)
	if err != nil {
		return nil, err
	}
	m := nums[0]
	for _, n := range nums[1:] {
		m = math.Min(m, n)
	}
	return number(m), nil
}

func globalSum(args []any, _ map[string]any) (any, error) {
	nums, err := numbers("sum", args)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return number(total), nil
}

func globalAbs(args []any, _ map[string]any) (any, error) {
	nums, err := numbers("abs", args)
	if err != nil {
		return nil, err
	}
	return number(math.Abs(nums[0])), nil
}

func globalRound(args []any, kwargs map[string]any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("round() missing required argument")
	}
	f, ok := ToFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("round(): %v is not a number", args[0])
	}
	digits := argInt(args, 1, 0)
	if d, ok := kwargs["ndigits"]; ok {
		digits = argInt([]any{d}, 0, 0)
	}
	pow := math.Pow(10, float64(digits))
	return number(math.Round(f*pow) / pow), nil
}

func globalUpper(args []any, _ map[string]any) (any, error) {
	return strings.ToUpper(argString(args, 0, "")), nil
}

func globalLower(args []any, _ map[string]any) (any, error) {
	return strings.ToLower(argString(args, 0, "")), nil
}

// ToFloat converts numeric values (and numeric strings) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
