package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Stats JSONStats `json:"stats"`
	Runs  []JSONRun `json:"runs"`
	Time  string    `json:"time"`
}

// JSONStats mirrors Stats with durations in milliseconds
type JSONStats struct {
	Runs     int     `json:"runs"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Errors   int     `json:"errors"`
	Steps    int     `json:"steps"`
	Duration float64 `json:"duration_ms"`
	P50      float64 `json:"p50_ms"`
	P95      float64 `json:"p95_ms"`
	P99      float64 `json:"p99_ms"`
	Max      float64 `json:"max_ms"`
}

// JSONRun is one test case run: the summary when there is one, and the
// error that stopped it
type JSONRun struct {
	File    string            `json:"file"`
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Summary *testcase.Summary `json:"summary,omitempty"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	results []JSONRun
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONRun, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatSummary(file string, s *testcase.Summary, err error) {
	run := JSONRun{
		File:    file,
		Success: s != nil && s.Success && err == nil,
		Summary: s,
	}
	if err != nil {
		run.Error = err.Error()
	}

	f.mu.Lock()
	f.results = append(f.results, run)
	f.mu.Unlock()
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual runs
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(st Stats) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	output := JSONOutput{
		Stats: JSONStats{
			Runs:     st.Runs,
			Passed:   st.Passed,
			Failed:   st.Failed,
			Errors:   st.Errors,
			Steps:    st.Steps,
			Duration: millis(st.Duration),
			P50:      millis(st.P50),
			P95:      millis(st.P95),
			P99:      millis(st.P99),
			Max:      millis(st.Max),
		},
		Runs: f.results,
		Time: time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
