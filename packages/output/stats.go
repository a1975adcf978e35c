package output

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// Stats is the roll-up of every run in an invocation.
type Stats struct {
	Runs     int           `json:"runs"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Errors   int           `json:"errors"`
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	P99      time.Duration `json:"p99"`
	Max      time.Duration `json:"max"`
}

// Suite accumulates run summaries and step latencies.
type Suite struct {
	mu sync.Mutex

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram
	stats     Stats
	startTime time.Time
}

func NewSuite() *Suite {
	return &Suite{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(1, 60_000_000, 3),
		startTime: time.Now(),
	}
}

// Add records one run. A nil summary is a run that failed before it could
// produce one and counts as an error.
func (s *Suite) Add(summary *testcase.Summary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Runs++
	switch {
	case summary == nil:
		s.stats.Errors++
		return
	case summary.Success && err == nil:
		s.stats.Passed++
	default:
		s.stats.Failed++
	}
	s.recordSteps(summary.StepResults)
}

func (s *Suite) recordSteps(results []*testcase.StepResult) {
	for _, r := range results {
		if nested := r.Nested(); nested != nil {
			s.recordSteps(nested)
			continue
		}
		s.stats.Steps++

		latencyUs := r.Elapsed.Microseconds()
		if latencyUs < 1 {
			latencyUs = 1
		}
		if latencyUs > 60_000_000 {
			latencyUs = 60_000_000
		}
		_ = s.histogram.RecordValue(latencyUs)
	}
}

// Stats returns the totals so far, with step latency percentiles.
func (s *Suite) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.Duration = time.Since(s.startTime)
	if s.histogram.TotalCount() > 0 {
		out.P50 = time.Duration(s.histogram.ValueAtQuantile(50)) * time.Microsecond
		out.P95 = time.Duration(s.histogram.ValueAtQuantile(95)) * time.Microsecond
		out.P99 = time.Duration(s.histogram.ValueAtQuantile(99)) * time.Microsecond
		out.Max = time.Duration(s.histogram.Max()) * time.Microsecond
	}
	return out
}

// Success reports whether every run passed.
func (st Stats) Success() bool {
	return st.Failed == 0 && st.Errors == 0
}
