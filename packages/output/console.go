package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatSummary prints one run: its steps, the validators that failed and,
// when err is set, why the run stopped.
func (f *ConsoleFormatter) FormatSummary(file string, s *testcase.Summary, err error) {
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if s == nil {
		fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+file))
		fmt.Fprintf(f.writer, "  %s %s\n\n", red("x"), red(fmt.Sprintf("(%v)", err)))
		return
	}

	fmt.Fprintf(f.writer, "\n%s %s\n", bold("Running: "+s.Name), cyan("("+file+")"))
	fmt.Fprintf(f.writer, "\n")
	f.formatSteps(s.StepResults, 1)

	if err != nil {
		fmt.Fprintf(f.writer, "  %s %v\n", red("Error:"), err)
	}
	if f.verbose && len(s.InOut.ExportVars) > 0 {
		fmt.Fprintf(f.writer, "  Exports:\n")
		for _, name := range s.InOut.ExportVars.Keys() {
			fmt.Fprintf(f.writer, "    %s = %s\n", name, formatValue(s.InOut.ExportVars[name], 100))
		}
	}
	if s.Log != "" {
		fmt.Fprintf(f.writer, "  Log:  %s\n", s.Log)
	}
	fmt.Fprintf(f.writer, "  Time: %dms\n", s.Time.Duration.Milliseconds())
}

func (f *ConsoleFormatter) formatSteps(results []*testcase.StepResult, depth int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	indent := strings.Repeat("  ", depth)

	for _, r := range results {
		symbol := green("✓")
		if !r.Success {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "%s%s %s %s", indent, symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Elapsed.Milliseconds())))
		if r.Attempts > 1 {
			fmt.Fprintf(f.writer, " %s", yellow(fmt.Sprintf("[%d attempts]", r.Attempts)))
		}
		fmt.Fprintf(f.writer, "\n")

		if nested := r.Nested(); nested != nil {
			f.formatSteps(nested, depth+1)
			continue
		}
		sd := r.Session()
		if sd == nil {
			continue
		}
		if f.verbose {
			for _, rr := range sd.ReqResps {
				fmt.Fprintf(f.writer, "%s  %s %s -> %d\n", indent, rr.Request.Method, rr.Request.URL, rr.Response.StatusCode)
			}
		}
		for _, v := range sd.Validators {
			if v.Passed {
				continue
			}
			fmt.Fprintf(f.writer, "%s  %s %s(%s)\n", indent, red("→"), v.Comparator, v.Check)
			fmt.Fprintf(f.writer, "%s    Expected: %s\n", indent, formatValue(v.Expect, 100))
			fmt.Fprintf(f.writer, "%s    Actual:   %s\n", indent, formatValue(v.CheckValue, 100))
			if v.Message != "" {
				fmt.Fprintf(f.writer, "%s    %s\n", indent, v.Message)
			}
			if v.Detail != "" {
				fmt.Fprintf(f.writer, "%s    %s\n", indent, v.Detail)
			}
		}
		if f.verbose && len(r.ExportVars) > 0 {
			fmt.Fprintf(f.writer, "%s  Extracted:\n", indent)
			for _, name := range r.ExportVars.Keys() {
				fmt.Fprintf(f.writer, "%s    %s = %s\n", indent, name, formatValue(r.ExportVars[name], 100))
			}
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitrunner"), version)
}

// Flush prints the suite totals.
func (f *ConsoleFormatter) Flush(st Stats) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Runs:  ")
	if st.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", st.Passed)))
	}
	if st.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", st.Failed)))
	}
	if st.Errors > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d errored", st.Errors)))
	}
	fmt.Fprintf(f.writer, "%d total\n", st.Runs)
	fmt.Fprintf(f.writer, "Steps: %d (p50 %dms, p95 %dms, p99 %dms)\n",
		st.Steps, st.P50.Milliseconds(), st.P95.Milliseconds(), st.P99.Milliseconds())
	fmt.Fprintf(f.writer, "Time:  %dms\n", st.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
	return nil
}
