package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/harness"
	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	DB     string // run history database (optional)
	Keep   int    // runs kept per scenario after recording; 0 keeps all

	// runIDs names stored runs. Defaults to UUIDv7.
	runIDs engine.IDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// RunID is set when the run was written to the history database.
	RunID string `json:"run_id,omitempty"`

	// Drift lists fingerprints that changed since the scenario's previous
	// stored run. Drift is reported but does not fail the scenario.
	Drift []store.FingerprintChange `json:"drift,omitempty"`
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
		Short: "Run marble scenarios",
		Long: `Run every scenario file (.yaml, .yml, .cue) under a directory.

Each scenario builds hot and cold sources on a fresh virtual-time scheduler,
records its observers and checks the expected marbles. When
<dir>/golden/<name>.golden exists the canonical recording must match it
byte for byte.

With --db every run is appended to a SQLite history and compared with the
scenario's previous run; changed fingerprints are reported as drift.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  marbles test ./scenarios
  marbles test ./scenarios --filter "hot-*"
  marbles test ./scenarios --update
  marbles test ./scenarios --db marbles.db --format json
  marbles test ./scenarios --db marbles.db --keep 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record runs in this SQLite database")
	cmd.Flags().IntVar(&opts.Keep, "keep", 0, "keep only the latest N runs per scenario in --db (0 keeps all)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if opts.Keep < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--keep must be non-negative, got %d", opts.Keep))
	}
	if opts.Keep > 0 && opts.DB == "" {
		return NewExitError(ExitCommandError, "--keep requires --db")
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var history *store.Store
	if opts.DB != "" {
		history, err = store.Open(opts.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer history.Close()
	}
	if opts.runIDs == nil {
		opts.runIDs = engine.UUIDv7Generator{}
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(cmd.Context(), scenarioFile, opts, history)
		if opts.Format != "json" {
			printScenarioResult(cmd.OutOrStdout(), scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds all scenario files in a directory, skipping the
// golden fixture directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" && ext != ".cue" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(ctx context.Context, scenarioFile string, opts *TestOptions, history *store.Store) ScenarioResult {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()
	res := ScenarioResult{Name: filepath.Base(scenarioFile), File: scenarioFile}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := harness.Run(scenario, harness.WithLogger(logger))
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Pass = result.Pass
	res.Errors = result.Errors

	goldenPath := goldenFilePath(scenarioFile)
	if opts.Update {
		if err := updateGoldenFile(scenario, result, goldenPath); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		} else {
			logger.Info("golden updated", "scenario", scenario.Name, "path", goldenPath)
		}
	} else if _, err := os.Stat(goldenPath); err == nil {
		match, err := compareWithGolden(scenario, result, goldenPath)
		switch {
		case err != nil:
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		case !match:
			res.Pass = false
			res.Errors = append(res.Errors, "recording does not match golden file (run with --update to regenerate)")
		}
	}

	if history != nil {
		if err := recordRun(ctx, history, opts.runIDs, scenario.Name, result, &res); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to record run: %v", err))
		} else if opts.Keep > 0 {
			if err := pruneHistory(ctx, history, scenario.Name, opts.Keep, logger); err != nil {
				res.Pass = false
				res.Errors = append(res.Errors, fmt.Sprintf("failed to prune history: %v", err))
			}
		}
		for _, c := range res.Drift {
			logger.Warn("fingerprint drift",
				"scenario", scenario.Name,
				"kind", c.Kind,
				"name", c.Name,
				"previous", c.Previous,
				"current", c.Current,
			)
		}
	}

	return res
}

// recordRun compares the result with the scenario's latest stored run and
// appends it to the history.
func recordRun(ctx context.Context, history *store.Store, ids engine.IDGenerator, scenario string, result *harness.Result, res *ScenarioResult) error {
	run, err := newStoreRun(ids.Generate(), scenario, result)
	if err != nil {
		return err
	}

	prev, err := history.LatestRun(ctx, scenario)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if drift := store.CompareRuns(prev, *run); len(drift) > 0 {
			res.Drift = drift
		}
	}

	if err := history.WriteRun(ctx, run); err != nil {
		return err
	}
	res.RunID = run.ID
	return nil
}

// pruneHistory trims the scenario's history to the latest keep runs.
func pruneHistory(ctx context.Context, history *store.Store, scenario string, keep int, logger *slog.Logger) error {
	removed, err := history.PruneRuns(ctx, scenario, keep)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Debug("pruned run history", "scenario", scenario, "removed", removed, "keep", keep)
	}
	return nil
}

// newStoreRun converts a harness result into a history row.
func newStoreRun(id, scenario string, result *harness.Result) (*store.Run, error) {
	run := &store.Run{
		ID:              id,
		Scenario:        scenario,
		SchedulerID:     result.SchedulerID,
		Pass:            result.Pass,
		FinalFrame:      result.FinalFrame,
		Errors:          result.Errors,
		HarnessVersion:  ir.HarnessVersion,
		SnapshotVersion: ir.SnapshotVersion,
		Recordings:      make([]store.Recording, 0, len(result.Recordings)),
		Subscriptions:   make([]store.SubscriptionLog, 0, len(result.Subscriptions)),
	}
	for _, r := range result.Recordings {
		rec, err := store.NewRecording(r.Name, r.Source, r.Messages)
		if err != nil {
			return nil, fmt.Errorf("recording %q: %w", r.Name, err)
		}
		run.Recordings = append(run.Recordings, rec)
	}
	for _, l := range result.Subscriptions {
		log, err := store.NewSubscriptionLog(l.Source, l.Windows)
		if err != nil {
			return nil, fmt.Errorf("subscriptions %q: %w", l.Source, err)
		}
		run.Subscriptions = append(run.Subscriptions, log)
	}
	return run, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the current snapshot as the golden file.
func updateGoldenFile(scenario *harness.Scenario, result *harness.Result, goldenPath string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}

	snapshot := harness.NewSnapshot(scenario.Name, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result snapshot against the golden file.
func compareWithGolden(scenario *harness.Scenario, result *harness.Result, goldenPath string) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}

	snapshot := harness.NewSnapshot(scenario.Name, result)
	currentData, err := snapshot.MarshalCanonical()
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return bytes.Equal(goldenData, currentData), nil
}

func printScenarioResult(w io.Writer, res ScenarioResult) {
	if res.Pass {
		fmt.Fprintf(w, "✓ %s\n", res.Name)
	} else {
		fmt.Fprintf(w, "✗ %s\n", res.Name)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	for _, c := range res.Drift {
		fmt.Fprintf(w, "  ! %s %q changed since last run\n", c.Kind, c.Name)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
