package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/config"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/env"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/loader"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/project"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/runner"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/output"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run test case files",
	Long: `Run the YAML/JSON test cases in the given files or directories.
A parameterized test case runs once per parameter combination.

Examples:
  hitrunner run testcases/login.yml
  hitrunner run testcases/ --var user=alice --var retries=3
  hitrunner run testcases/ --output junit --output-file report.xml --progress
  hitrunner run testcases/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	varFlags       []string
	envFileFlag    string
	configFlag     string
	verboseFlag    int // 0=off, 1=-v, 2=-vv
	quietFlag      bool
	bailFlag       bool
	timeoutFlag    string
	noColorFlag    bool
	outputFlag     string
	outputFileFlag string
	progressFlag   bool
	watchFlag      bool
	proxyFlag      string
	insecureFlag   bool
	logDirFlag     string
	rateLimitFlag  float64
)

func init() {
	// Core flags
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a config variable (name=value, repeatable)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITRUNNER_ENV_FILE", ""), "Path to .env file, relative to the project root (env: HITRUNNER_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("HITRUNNER_CONFIG", ""), "Path to config file (env: HITRUNNER_CONFIG)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("HITRUNNER_QUIET", false), "Only log errors (env: HITRUNNER_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITRUNNER_NO_COLOR", false), "Disable colored output (env: HITRUNNER_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITRUNNER_OUTPUT", ""), "Output format: console, json, junit; defaults to the config's output (env: HITRUNNER_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITRUNNER_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITRUNNER_OUTPUT_FILE)")
	runCmd.Flags().BoolVar(&progressFlag, "progress", getEnvBool("HITRUNNER_PROGRESS", false), "Show a progress bar on stderr (env: HITRUNNER_PROGRESS)")
	runCmd.Flags().StringVar(&logDirFlag, "log-dir", getEnvString("HITRUNNER_LOG_DIR", ""), "Write each run's log to <dir>/<case id>.run.log (env: HITRUNNER_LOG_DIR)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITRUNNER_BAIL", false), "Stop on first failed run (env: HITRUNNER_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITRUNNER_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITRUNNER_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateLimitFlag, "rate-limit", getEnvFloat("HITRUNNER_RATE_LIMIT", 0), "Requests per second per session, 0 = unlimited (env: HITRUNNER_RATE_LIMIT)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITRUNNER_PROXY", ""), "Proxy URL for HTTP requests (env: HITRUNNER_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITRUNNER_INSECURE", false), "Disable SSL certificate validation (env: HITRUNNER_INSECURE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// VarEnvPrefix marks process environment variables that become config
// variables: HITRUNNER_VAR_user=alice sets $user. --var takes precedence.
const VarEnvPrefix = "HITRUNNER_VAR_"

// cliVariables merges HITRUNNER_VAR_* variables with the --var flags.
func cliVariables(pairs []string) (testcase.Variables, error) {
	flagVars, err := parseVars(pairs)
	if err != nil {
		return nil, err
	}
	return testcase.Variables(env.MergeVariables(env.LoadSystemEnv(VarEnvPrefix), flagVars)), nil
}

// parseVars turns name=value pairs into config variables. Values are read as
// YAML scalars, so --var n=3 is an int and --var on=true a bool.
func parseVars(pairs []string) (testcase.Variables, error) {
	vars := testcase.Variables{}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q (want name=value)", pair)
		}
		var value any = raw
		if raw != "" {
			var parsed any
			if err := yaml.Unmarshal([]byte(raw), &parsed); err == nil && parsed != nil {
				value = parsed
			}
		}
		vars[name] = value
	}
	return vars, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	vars, err := cliVariables(varFlags)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := runOnce(ctx, args, vars, out)
	if err != nil {
		return err
	}

	// If watch mode is not enabled, exit normally
	if !watchFlag {
		if !stats.Success() {
			os.Exit(ExitTestFailure)
		}
		return nil
	}

	return watch(ctx, cmd, args, func() {
		if _, err := runOnce(ctx, args, vars, out); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

type job struct {
	file   string
	tc     *testcase.TestCase
	runner *runner.Runner
	bail   bool
	combos []testcase.Variables
}

type loadFailure struct {
	file string
	err  error
}

// runOnce loads every test case under args and runs them in order. Projects
// are loaded fresh each time, so a re-run in watch mode sees edited files.
func runOnce(ctx context.Context, args []string, vars testcase.Variables, w io.Writer) (output.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	suite := output.NewSuite()
	var (
		current   *job
		bar       *progressbar.ProgressBar
		formatter output.Formatter
	)
	hook := func(s *testcase.Summary, err error) {
		formatter.FormatSummary(current.file, s, err)
		suite.Add(s, err)
		if bar != nil {
			updateProgressBar(bar, suite.Stats())
		}
		if current.bail && (s == nil || !s.Success || err != nil) {
			cancel()
		}
	}

	jobs, failures, runners, err := planRuns(args, newLogger(verboseFlag, quietFlag), hook)
	defer func() {
		for _, r := range runners {
			_ = r.Close()
		}
	}()
	if err != nil {
		return output.Stats{}, err
	}

	// The first project's configuration supplies the output defaults.
	cfg := runners[0].Project().Config
	format := outputFlag
	if format == "" {
		format = cfg.Output
	}
	formatter, err = output.New(strings.ToLower(format), w, verboseFlag > 0 || cfg.GetVerbose(), noColorFlag || cfg.GetNoColor())
	if err != nil {
		return output.Stats{}, err
	}
	formatter.FormatHeader(version)

	for _, f := range failures {
		formatter.FormatSummary(f.file, nil, f.err)
		suite.Add(nil, f.err)
	}

	if progressFlag {
		total := 0
		for _, j := range jobs {
			total += len(j.combos)
		}
		bar = newProgressBar(total)
	}

	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		current = &jobs[i]
		// Run errors reach the formatter through the hook.
		_, _ = current.runner.RunCombinations(ctx, current.tc, current.combos, runner.WithVariables(vars))
	}

	if bar != nil {
		_ = bar.Finish()
	}

	stats := suite.Stats()
	if err := formatter.Flush(stats); err != nil {
		return stats, fmt.Errorf("error writing output: %w", err)
	}
	return stats, nil
}

// planRuns builds one runner per argument, since each argument may live in a
// different project, and loads the test cases it contains. Files that fail to
// load are returned as failures instead of stopping the others.
func planRuns(args []string, logger *slog.Logger, hook runner.RunHook) ([]job, []loadFailure, []*runner.Runner, error) {
	var (
		jobs     []job
		failures []loadFailure
		runners  []*runner.Runner
	)

	for _, arg := range args {
		projOpts := []project.Option{project.WithExportEnv()}
		if envFileFlag != "" {
			projOpts = append(projOpts, project.WithDotEnv(envFileFlag))
		}
		if configFlag != "" {
			projOpts = append(projOpts, project.WithConfigFile(configFlag))
		}
		proj, err := project.Load(arg, projOpts...)
		if err != nil {
			return jobs, failures, runners, err
		}
		if proj.Config.IsDefault() {
			logger.Debug("configuration matches defaults", "root", proj.RootDir)
		}
		if err := applyOverrides(proj); err != nil {
			return jobs, failures, runners, err
		}

		r := runner.New(proj, runner.WithLogger(logger), runner.WithRunHook(hook))
		runners = append(runners, r)

		files, err := loader.FindTestFiles(arg, isConfigFile)
		if err != nil {
			return jobs, failures, runners, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil {
				return jobs, failures, runners, err
			}
			tc, err := proj.Loader().LoadTestCase(abs)
			if err != nil {
				failures = append(failures, loadFailure{file: file, err: err})
				continue
			}
			combos, err := r.Combinations(tc)
			if err != nil {
				failures = append(failures, loadFailure{file: file, err: err})
				continue
			}
			jobs = append(jobs, job{
				file:   file,
				tc:     tc,
				runner: r,
				bail:   bailFlag || proj.Config.GetBail(),
				combos: combos,
			})
		}
	}

	if len(jobs) == 0 && len(failures) == 0 {
		return jobs, failures, runners, fmt.Errorf("no test case files found")
	}
	return jobs, failures, runners, nil
}

// applyOverrides lays the CLI flags over the project configuration.
func applyOverrides(proj *project.Context) error {
	cfg := proj.Config
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		cfg.Timeout = int(d.Milliseconds())
	}
	if proxyFlag != "" {
		cfg.Proxy = proxyFlag
	}
	if insecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if rateLimitFlag > 0 {
		cfg.RateLimit = rateLimitFlag
	}
	if logDirFlag != "" {
		dir, err := filepath.Abs(logDirFlag)
		if err != nil {
			return err
		}
		cfg.LogDir = dir
	} else if cfg.LogDir != "" && !filepath.IsAbs(cfg.LogDir) {
		base := cfg.Dir
		if base == "" {
			base = proj.RootDir
		}
		cfg.LogDir = filepath.Join(base, cfg.LogDir)
	}
	return nil
}

func isConfigFile(name string) bool {
	for _, n := range config.ConfigFilenames {
		if name == n {
			return true
		}
	}
	return false
}

func newProgressBar(count int) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(
			color.CyanString("Running test cases: ")+
				color.GreenString("[passed: 0")+
				" | "+
				color.RedString("failed: 0]"),
		),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func updateProgressBar(bar *progressbar.ProgressBar, st output.Stats) {
	_ = bar.Set(st.Runs)
	bar.Describe(
		color.CyanString("Running test cases: ") +
			color.GreenString("[passed: %d", st.Passed) +
			" | " +
			color.RedString("failed: %d]", st.Failed+st.Errors),
	)
}

// watch re-runs whenever a test case, data file, .env or config file under
// args is written. It returns when ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			dir := filepath.Dir(arg)
			if !watchedDirs[dir] {
				if err := watcher.Add(dir); err != nil {
					return fmt.Errorf("failed to watch %s: %w", dir, err)
				}
				watchedDirs[dir] = true
			}
			continue
		}
		_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && !watchedDirs[path] {
				_ = watcher.Add(path)
				watchedDirs[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	trigger := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || !isWatchedFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case trigger <- name:
				default:
				}
			})

		case name := <-trigger:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", name)
			rerun()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func isWatchedFile(path string) bool {
	base := filepath.Base(path)
	if base == project.DotEnvFile || isConfigFile(base) {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return loader.IsTestFile(path)
}
