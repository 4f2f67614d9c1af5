package ir

// Version constants for snapshots and the harness.
const (
	// SnapshotVersion is the schema version of canonical recording snapshots.
	SnapshotVersion = "1"

	// HarnessVersion is the marbles harness version.
	HarnessVersion = "0.1.0"
)
