package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeopt/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run optimizer scenarios",
		Long: `Run scenario files through the harness.

Each scenario is executed before and after optimization against a fresh
in-memory store. A scenario passes when both runs return the same documents,
optimization is idempotent, and every expectation holds. When
<scenarios-dir>/golden/<name>.golden exists, the plan snapshot must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable scenarios, etc.)

Examples:
  pipeopt test ./scenarios
  pipeopt test ./scenarios --filter "scenario_*"
  pipeopt test ./scenarios --update
  pipeopt test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
	}

	paths, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "failed to find scenarios", err)
	}

	if len(paths) == 0 {
		if f.Format == "json" {
			return f.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	results, err := harness.RunAll(commandContext(cmd), paths, harness.WithLogger(f.Logger()))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScenario, "failed to run scenarios", err)
	}

	goldenDir := filepath.Join(scenariosDir, "golden")
	out := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(results)),
		Total:     len(results),
	}
	for _, r := range results {
		sr := checkScenario(r, goldenDir, opts.Update)
		out.Scenarios = append(out.Scenarios, sr)
		if sr.Pass {
			out.Passed++
		} else {
			out.Failed++
		}
	}

	if f.Format == "json" {
		if err := f.Success(out); err != nil {
			return err
		}
	} else {
		writeTestText(f, out, opts.Update)
	}

	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", out.Failed, out.Total))
	}
	return nil
}

// checkScenario folds the golden comparison into a harness result. A
// scenario without a golden file is judged on its checks alone.
func checkScenario(r *harness.Result, goldenDir string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: r.Name, Pass: r.Pass, Errors: r.Errors}

	goldenPath := filepath.Join(goldenDir, r.Name+".golden")
	if _, err := os.Stat(goldenPath); !update && errors.Is(err, os.ErrNotExist) {
		return sr
	}

	if err := harness.CheckGolden(goldenDir, r, update); err != nil {
		sr.Pass = false
		if errors.Is(err, harness.ErrGoldenMismatch) {
			sr.Errors = append(sr.Errors, "plan does not match golden file (run with --update to regenerate)")
		} else {
			sr.Errors = append(sr.Errors, err.Error())
		}
	}
	return sr
}

// findScenarioFiles lists the scenario files in dir whose base name (without
// extension) matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	paths, err := harness.FindScenarios(dir)
	if err != nil || filter == "" {
		return paths, err
	}

	var out []string
	for _, path := range paths {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, path)
		}
	}
	return out, nil
}

func writeTestText(f *OutputFormatter, result TestResult, updated bool) {
	w := f.Writer
	for _, s := range result.Scenarios {
		if s.Pass {
			if updated {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
			} else {
				fmt.Fprintf(w, "✓ %s\n", s.Name)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
