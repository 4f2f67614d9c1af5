package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps the run history of marble scenarios: one row per run plus the
// fingerprinted recordings and subscription logs that run produced.
//
// Runs are ordered by their logical seq, never by wall-clock time, so two
// histories built from the same runs read back identically.
type Store struct {
	db *sql.DB
}

// connParams are handed to the sqlite3 driver, which applies them to every
// connection it opens:
//   - WAL journal so `marbles history` can read while `marbles test` writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout
//   - foreign keys, so deleting a run cascades to its recordings
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Open creates or opens the history database at path and brings its schema
// up to date. Opening an existing history is safe and keeps its runs.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	// One connection: seq assignment in WriteRun relies on a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: schema: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PruneRuns deletes all but the keep most recent runs of scenario, together
// with their recordings and subscription logs. keep <= 0 deletes nothing.
// Returns the number of runs removed.
func (s *Store) PruneRuns(ctx context.Context, scenario string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE scenario = ?
		  AND seq NOT IN (
		    SELECT seq FROM runs WHERE scenario = ? ORDER BY seq DESC LIMIT ?
		  )
	`, scenario, scenario, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs of %q: %w", scenario, err)
	}
	return res.RowsAffected()
}

// migration upgrades a history whose user_version is below version.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations run in order. schema.sql always describes the latest layout;
// a migration only has to patch histories written by older builds.
var migrations = []migration{
	{version: 1, name: "recording positions", apply: addPositionColumns},
}

// schemaVersion is the user_version of an up-to-date history.
var schemaVersion = migrations[len(migrations)-1].version

// migrate applies each pending migration in its own transaction and bumps
// user_version with it.
func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		version = m.version
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// addPositionColumns gives recordings and subscription logs the column that
// keeps them in scenario order when read back.
func addPositionColumns(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"recordings", "subscription_logs"} {
		has, err := hasColumn(ctx, tx, table, "position")
		if err != nil {
			return err
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN position INTEGER NOT NULL DEFAULT 0", table)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func hasColumn(ctx context.Context, q querier, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
