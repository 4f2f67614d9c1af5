package store

import (
	"context"
	"fmt"
)

// WriteRun appends a run with its recordings and subscription logs.
//
// The run's Seq is assigned here as one past the highest stored seq, and
// written back into run. Uses ON CONFLICT(id) DO NOTHING for idempotency:
// writing the same run ID twice keeps the first row and returns its seq.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	errorsJSON, err := marshalErrors(run.Errors)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("write run: lookup: %w", err)
	}
	if existing > 0 {
		run.Seq = existing
		return tx.Commit()
	}

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&last); err != nil {
		return fmt.Errorf("write run: last seq: %w", err)
	}
	seq := last + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scenario, scheduler_id, pass, final_frame, errors, harness_version, snapshot_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		run.Scenario,
		run.SchedulerID,
		boolToInt(run.Pass),
		int64(run.FinalFrame),
		errorsJSON,
		run.HarnessVersion,
		run.SnapshotVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for i, rec := range run.Recordings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recordings (run_id, position, name, source, fingerprint, messages)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i, rec.Name, rec.Source, rec.Fingerprint, rec.Messages)
		if err != nil {
			return fmt.Errorf("write run: recording %q: %w", rec.Name, err)
		}
	}

	for i, log := range run.Subscriptions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_logs (run_id, position, source, fingerprint, windows)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, i, log.Source, log.Fingerprint, log.Windows)
		if err != nil {
			return fmt.Errorf("write run: subscriptions %q: %w", log.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}

	run.Seq = seq
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
