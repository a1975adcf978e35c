package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/config"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/project"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitrunner project",
	Long: `Initialize a new hitrunner project in the current directory.

This creates:
  - hitrunner.config.json   - Configuration file, marks the project root
  - .env                    - Variables read by ${ENV(name)}
  - testcases/example.yml   - Example test case

Examples:
  hitrunner init
  hitrunner init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleEnv = `BASE_URL=https://httpbin.org
USERNAME=alice
`

const exampleTestCase = `config:
  name: example $user
  base_url: ${ENV(BASE_URL)}
  variables:
    user: ${ENV(USERNAME)}
  parameters:
    page: [1, 2]
  export:
    - echoed

teststeps:
  - name: get with query
    request:
      method: GET
      url: /get
      params:
        user: $user
        page: $page
    extract:
      echoed: body.args.user
    validate:
      - eq: [status_code, 200]
      - eq: [body.args.user, $user]
      - contains: [headers.Content-Type, json]

  - name: post the extracted value
    request:
      method: POST
      url: /post
      json:
        name: $echoed
        id: ${uuid()}
    validate:
      - eq: [status_code, 200]
      - check: body.json.name
        assert: equal
        expect: $echoed
        msg: posted name comes back
    validate_script:
      - "status_code == 200 && elapsed_ms < 5000"
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hitrunner.config.json")
	envFile := filepath.Join(cwd, project.DotEnvFile)
	exampleFile := filepath.Join(cwd, "testcases", "example.yml")

	if !forceInit {
		for _, f := range []string{configFile, envFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "hitrunner/" + version}
	cfg.LogDir = "logs"
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(envFile, []byte(exampleEnv), 0644); err != nil {
		return fmt.Errorf("failed to create .env file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	if err := os.MkdirAll(filepath.Dir(exampleFile), 0755); err != nil {
		return fmt.Errorf("failed to create testcases directory: %w", err)
	}
	if err := os.WriteFile(exampleFile, []byte(exampleTestCase), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitrunner project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitrunner run testcases/' to execute the example test case.\n")

	return nil
}
