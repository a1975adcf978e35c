package testcase

import (
	"fmt"
	"sort"
	"time"
)

// Variables maps variable names to values. Values may be scalars, nested
// maps/slices or template strings that still need resolution.
type Variables map[string]any

// Keys returns the variable names in sorted order so resolution passes
// iterate deterministically.
func (v Variables) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge layers sources over each other; later sources win on collision.
func Merge(sources ...Variables) Variables {
	out := make(Variables)
	for _, src := range sources {
		for k, val := range src {
			out[k] = val
		}
	}
	return out
}

// Parameter is one entry of a config's parameters block. Names holds the
// "-"-delimited output variable names, e.g. "username-password".
type Parameter struct {
	Names string
	Value any
}

// Parameters keeps declaration order, which drives the cartesian product order.
type Parameters []Parameter

type DBConfig struct {
	DSN string
}

type RPCConfig struct {
	Target  string
	Timeout time.Duration
}

type Config struct {
	Name       string
	BaseURL    string
	Variables  Variables
	Parameters Parameters
	Export     []string
	Verify     bool
	Path       string
	DB         DBConfig
	RPC        RPCConfig
}

// Clone returns a copy whose Variables and Export can be modified freely.
func (c Config) Clone() Config {
	c.Variables = c.Variables.Clone()
	c.Export = append([]string(nil), c.Export...)
	return c
}

type TestCase struct {
	Config Config
	Steps  []*Step
}

// Hook is a setup or teardown expression. When Assign is set, the value the
// expression evaluates to is stored under that variable name.
type Hook struct {
	Expr   string
	Assign string
}

// Validator is one declared assertion: Comparator(Check, Expect).
type Validator struct {
	Comparator string
	Check      string
	Expect     any
	Message    string
}

type Step struct {
	Name           string
	Variables      Variables
	SetupHooks     []Hook
	TeardownHooks  []Hook
	Extract        map[string]string
	Validators     []Validator
	ValidateScript []string
	RetryTimes     int
	RetryInterval  *time.Duration // nil uses the runner's default
	Export         []string

	payload Payload
}

// NewStep builds a step carrying exactly one payload variant.
func NewStep(name string, payload Payload) (*Step, error) {
	if payload == nil {
		return nil, fmt.Errorf("step %q: missing payload", name)
	}
	return &Step{
		Name:      name,
		Variables: Variables{},
		Extract:   map[string]string{},
		payload:   payload,
	}, nil
}

// MustStep is NewStep for statically built test cases.
func MustStep(name string, payload Payload) *Step {
	s, err := NewStep(name, payload)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Step) Payload() Payload {
	return s.payload
}

func (s *Step) Kind() Kind {
	if s.payload == nil {
		return ""
	}
	return s.payload.Kind()
}
