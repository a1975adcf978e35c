package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitrunner/packages/assertions"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/loader"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/project"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Check test case files without running them",
	Long: `Load test case files, including the test cases they reference, and
check that every validator names a known comparator.

Examples:
  hitrunner validate testcases/login.yml
  hitrunner validate testcases/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	found := 0
	hasErrors := false
	for _, arg := range args {
		proj, err := project.Load(arg)
		if err != nil {
			return err
		}
		files, err := loader.FindTestFiles(arg, isConfigFile)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", arg, err)
		}
		found += len(files)

		for _, file := range files {
			if err := validateFile(proj, file); err != nil {
				fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
				hasErrors = true
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
			}
		}
	}

	if found == 0 {
		return fmt.Errorf("no test case files found")
	}
	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func validateFile(proj *project.Context, file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	tc, err := proj.Loader().LoadTestCase(abs)
	if err != nil {
		return err
	}
	return checkComparators(tc)
}

func checkComparators(tc *testcase.TestCase) error {
	for _, step := range tc.Steps {
		for _, v := range step.Validators {
			if _, ok := assertions.Canonical(v.Comparator); !ok {
				return fmt.Errorf("step %q: unknown comparator %q", step.Name, v.Comparator)
			}
		}
		if ref, ok := step.Payload().(*testcase.Reference); ok && ref.TestCase != nil {
			if err := checkComparators(ref.TestCase); err != nil {
				return fmt.Errorf("%s: %w", ref.Path, err)
			}
		}
	}
	return nil
}
