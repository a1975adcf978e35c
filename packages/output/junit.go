package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one test case run
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	SystemOut string          `xml:"system-out,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one step
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatSummary(file string, s *testcase.Summary, err error) {
	suite := JUnitTestSuite{
		Name:      file,
		Timestamp: time.Now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0),
	}

	if s == nil {
		suite.Tests = 1
		suite.Errors = 1
		suite.TestCases = append(suite.TestCases, JUnitTestCase{
			Name:      file,
			ClassName: file,
			Error:     &JUnitError{Message: errString(err), Type: "Error"},
		})
		f.testSuites = append(f.testSuites, suite)
		return
	}

	suite.Name = s.Name
	suite.Time = s.Time.Duration.Seconds()
	suite.SystemOut = s.Log
	f.appendSteps(&suite, file, "", s.StepResults)

	// A run that stopped after its last step passed (export failure) still
	// needs to show up as an error.
	if err != nil && suite.Failures == 0 {
		suite.Errors++
		suite.TestCases = append(suite.TestCases, JUnitTestCase{
			Name:      s.Name,
			ClassName: file,
			Error:     &JUnitError{Message: err.Error(), Type: "Error"},
		})
	}
	suite.Tests = len(suite.TestCases)

	f.testSuites = append(f.testSuites, suite)
}

func (f *JUnitFormatter) appendSteps(suite *JUnitTestSuite, file, prefix string, results []*testcase.StepResult) {
	for _, r := range results {
		name := prefix + r.Name
		if nested := r.Nested(); nested != nil {
			f.appendSteps(suite, file, name+" > ", nested)
			continue
		}

		tc := JUnitTestCase{
			Name:      name,
			ClassName: file,
			Time:      r.Elapsed.Seconds(),
		}
		if !r.Success {
			suite.Failures++
			var failureMsg strings.Builder
			if sd := r.Session(); sd != nil {
				for _, v := range sd.Validators {
					if !v.Passed {
						fmt.Fprintf(&failureMsg, "%s(%s): expected %v, got %v. %s\n",
							v.Comparator, v.Check, v.Expect, v.CheckValue, v.Detail)
					}
				}
			}
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("step failed after %d attempt(s)", r.Attempts),
				Type:    "AssertionError",
				Content: failureMsg.String(),
			}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(st Stats) error {
	var totalTests, totalFailures, totalErrors int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
	}

	suites := JUnitTestSuites{
		Name:       "hitrunner",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Time:       st.Duration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}

func errString(err error) string {
	if err == nil {
		return "run produced no summary"
	}
	return err.Error()
}
