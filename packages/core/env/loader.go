package env

import (
	"os"
	"strings"
)

// Lookup reads an environment variable from the loaded .env values first,
// then from the process environment.
func Lookup(dotenv map[string]string) func(name string) (string, bool) {
	return func(name string) (string, bool) {
		if v, ok := dotenv[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns the process environment variables whose names start
// with prefix, keyed by the name with the prefix removed.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
