package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// Formatter renders run summaries as they complete, then the suite totals.
type Formatter interface {
	FormatHeader(version string)
	FormatSummary(file string, summary *testcase.Summary, err error)
	FormatError(err error)
	Flush(stats Stats) error
}

// New returns the formatter for name: console, json or junit.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want console, json or junit)", name)
	}
}
