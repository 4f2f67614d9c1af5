package store

import (
	"github.com/roach88/marbles/internal/ir"
)

// Run is one execution of one scenario.
type Run struct {
	// ID is assigned by the caller (UUIDv7 in the CLI).
	ID string

	// Seq orders runs across the whole store. Assigned by WriteRun.
	Seq int64

	Scenario    string
	SchedulerID string
	Pass        bool
	FinalFrame  ir.Frame

	// Errors holds one message per failed expectation. Never nil after a read.
	Errors []string

	HarnessVersion  string
	SnapshotVersion string

	Recordings    []Recording
	Subscriptions []SubscriptionLog
}

// Recording is one observer's messages in canonical JSON.
type Recording struct {
	Name        string
	Source      string
	Fingerprint string
	Messages    string
}

// SubscriptionLog is one source's windows in canonical JSON.
type SubscriptionLog struct {
	Source      string
	Fingerprint string
	Windows     string
}

// Change kinds reported by CompareRuns.
const (
	ChangeRecording     = "recording"
	ChangeSubscriptions = "subscriptions"
)

// FingerprintChange is a recording or subscription log whose fingerprint
// differs between two runs. An empty side means it is absent from that run.
type FingerprintChange struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
}
