package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/healthpass/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	GoldenDir string
	Update    bool
}

// ScenarioResult holds the result of a single scenario run.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioReport holds the overall result of a scenario command.
type ScenarioReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run YAML scenarios against a fresh ledger",
		Long: `Run YAML scenarios against a fresh ledger and report pass/fail.

Each scenario runs on its own ledger with deterministic transaction ids
and timestamps, so its trace is reproducible. When a golden directory is
given, the trace is also compared with <dir>/<scenario name>.golden;
--update rewrites those files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable scenario, bad flags)

Examples:
  healthpass scenario testdata/scenarios/*.yaml
  healthpass scenario lifecycle.yaml --golden testdata/golden
  healthpass scenario lifecycle.yaml --golden testdata/golden --update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current traces")

	return cmd
}

func runScenarios(opts *ScenarioOptions, cmd *cobra.Command, files []string) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	scenarios := make([]*harness.Scenario, len(files))
	for i, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", file), err)
		}
		scenarios[i] = s
	}

	report := ScenarioReport{Scenarios: make([]ScenarioResult, 0, len(files))}
	for i, s := range scenarios {
		r := runScenario(opts, cmd, s, files[i])
		if r.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Scenarios = append(report.Scenarios, r)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Format == "json" {
		if report.Failed > 0 {
			if err := out.Error(CodeScenarioFailed, fmt.Sprintf("%d scenario(s) failed", report.Failed), report); err != nil {
				return err
			}
		} else if err := out.Success(report); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range report.Scenarios {
			if r.Pass {
				fmt.Fprintf(w, "✓ %s\n", r.Name)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", r.Name)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d failed\n", report.Passed, report.Failed)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	return nil
}

func runScenario(opts *ScenarioOptions, cmd *cobra.Command, s *harness.Scenario, file string) ScenarioResult {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	out.VerboseLog("running %s (%s)", s.Name, file)

	result := ScenarioResult{Name: s.Name, File: file}
	res, err := harness.Run(cmd.Context(), s)
	if err != nil {
		result.Errors = []string{err.Error()}
		return result
	}
	result.Steps = len(res.Trace)
	result.Pass = res.Pass
	result.Errors = res.Errors

	if opts.GoldenDir == "" {
		return result
	}

	trace, err := harness.MarshalTrace(s.Name, res)
	if err != nil {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return result
	}

	path := goldenFilePath(opts.GoldenDir, s.Name)
	if opts.Update {
		if err := updateGoldenFile(path, trace); err != nil {
			result.Pass = false
			result.Errors = append(result.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return result
		}
		out.VerboseLog("updated %s", path)
		return result
	}

	golden, err := os.ReadFile(path)
	if err != nil {
		result.Pass = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return result
	}
	if !bytes.Equal(golden, trace) {
		result.Pass = false
		result.Errors = append(result.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return result
}

// goldenFilePath returns the golden file of the named scenario in dir.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// updateGoldenFile writes trace as the golden file at path.
func updateGoldenFile(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, trace, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
