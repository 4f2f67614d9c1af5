package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/marbles/internal/ir"
)

const runColumns = `id, seq, scenario, scheduler_id, pass, final_frame, errors, harness_version, snapshot_version`

// ReadRun returns a run with its recordings and subscription logs.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, err
	}
	if err := s.loadChildren(ctx, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// LatestRun returns the most recent run of a scenario.
// Returns sql.ErrNoRows if the scenario has never run.
func (s *Store) LatestRun(ctx context.Context, scenario string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE scenario = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scenario)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, err
	}
	if err := s.loadChildren(ctx, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadRuns returns every run of a scenario, oldest first.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the scenario has never run.
func (s *Store) ReadRuns(ctx context.Context, scenario string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE scenario = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, scenario)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	// Children are loaded after the cursor is closed: the store holds a
	// single connection.
	for i := range runs {
		if err := s.loadChildren(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// ListScenarios returns the distinct scenario names with stored runs,
// sorted by name.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scenario FROM runs ORDER BY scenario COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return names, nil
}

// GetLastSeq returns the highest run seq, or 0 for an empty store.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq, nil
}

func (s *Store) loadChildren(ctx context.Context, run *Run) error {
	recordings, err := s.readRecordings(ctx, run.ID)
	if err != nil {
		return err
	}
	subscriptions, err := s.readSubscriptionLogs(ctx, run.ID)
	if err != nil {
		return err
	}
	run.Recordings = recordings
	run.Subscriptions = subscriptions
	return nil
}

func (s *Store) readRecordings(ctx context.Context, runID string) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source, fingerprint, messages
		FROM recordings
		WHERE run_id = ?
		ORDER BY position ASC, name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	recordings := []Recording{}
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.Name, &r.Source, &r.Fingerprint, &r.Messages); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

func (s *Store) readSubscriptionLogs(ctx context.Context, runID string) ([]SubscriptionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, fingerprint, windows
		FROM subscription_logs
		WHERE run_id = ?
		ORDER BY position ASC, source COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query subscription logs: %w", err)
	}
	defer rows.Close()

	logs := []SubscriptionLog{}
	for rows.Next() {
		var l SubscriptionLog
		if err := rows.Scan(&l.Source, &l.Fingerprint, &l.Windows); err != nil {
			return nil, fmt.Errorf("scan subscription log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription logs: %w", err)
	}
	return logs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans the run columns. sql.ErrNoRows is returned unwrapped so
// callers can compare against it.
func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		pass       int
		finalFrame int64
		errorsJSON string
	)
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Scenario,
		&run.SchedulerID,
		&pass,
		&finalFrame,
		&errorsJSON,
		&run.HarnessVersion,
		&run.SnapshotVersion,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	errs, err := unmarshalErrors(errorsJSON)
	if err != nil {
		return Run{}, err
	}

	run.Pass = pass == 1
	run.FinalFrame = ir.Frame(finalFrame)
	run.Errors = errs
	return run, nil
}
