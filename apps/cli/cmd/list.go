package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/loader"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/project"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/runner"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List test cases, their steps and run counts",
	Long: `List the test cases in the given files or directories with their steps.
Parameterized test cases show how many runs their parameters expand to.

Examples:
  hitrunner list testcases/login.yml
  hitrunner list testcases/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	found := 0
	for _, arg := range args {
		proj, err := project.Load(arg)
		if err != nil {
			return err
		}
		r := runner.New(proj)
		files, err := loader.FindTestFiles(arg, isConfigFile)
		if err != nil {
			_ = r.Close()
			return fmt.Errorf("cannot access %s: %w", arg, err)
		}
		found += len(files)

		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil {
				_ = r.Close()
				return err
			}
			tc, err := proj.Loader().LoadTestCase(abs)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStderr(), "Error loading %s: %v\n", file, err)
				continue
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %s\n", file, tc.Config.Name)
			if combos, err := r.Combinations(tc); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  runs: error: %v\n", err)
			} else if len(combos) > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "  runs: %d\n", len(combos))
			}
			for _, step := range tc.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", step.Name, step.Kind())
			}
		}
		_ = r.Close()
	}

	if found == 0 {
		return fmt.Errorf("no test case files found")
	}
	return nil
}
