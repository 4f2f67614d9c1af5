// Package store provides SQLite-backed run history for marble scenarios.
//
// Every `marbles test --db` invocation appends one run per scenario:
//   - Runs: scenario name, pass/fail, final frame, failure messages
//   - Recordings: each observer's messages as canonical JSON plus fingerprint
//   - Subscription logs: each source's windows as canonical JSON plus fingerprint
//
// # Critical Patterns
//
// Logical Ordering
//   - Runs are ordered by seq INTEGER (assigned on write), NEVER timestamps
//   - Queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Determinism Checks
//   - A scenario whose inputs did not change must reproduce its fingerprints
//   - CompareRuns reports every fingerprint that differs between two runs
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints are computed by internal/ir using canonical JSON and SHA-256
// with domain separation.
package store
