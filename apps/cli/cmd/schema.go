package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/loader"
	"github.com/spf13/cobra"
)

var schemaOutputFlag string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the test case file format",
	Long: `Print the JSON Schema that test case YAML/JSON files follow, for editor
completion and CI linting.

Examples:
  hitrunner schema
  hitrunner schema --output testcase.schema.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := loader.Schema()
		if err != nil {
			return err
		}
		if schemaOutputFlag == "" {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		if err := os.WriteFile(schemaOutputFlag, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", schemaOutputFlag)
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutputFlag, "output", "o", "", "Write the schema to a file")
}
