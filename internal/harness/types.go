package harness

import (
	"github.com/roach88/marbles/internal/ir"
)

// Recording is what one observer saw.
type Recording struct {
	Name        string            `json:"name"`
	Source      string            `json:"source"`
	Messages    []ir.TimedMessage `json:"messages"`
	Fingerprint string            `json:"fingerprint"`
}

// SubscriptionLog is the subscription history of one source.
type SubscriptionLog struct {
	Source      string                  `json:"source"`
	Windows     []ir.SubscriptionWindow `json:"windows"`
	Fingerprint string                  `json:"fingerprint"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matched.
	Pass bool `json:"pass"`

	// Errors contains one message per failed expectation.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Recordings are in scenario observe order.
	Recordings []Recording `json:"recordings"`

	// Subscriptions are in scenario source order.
	Subscriptions []SubscriptionLog `json:"subscriptions"`

	// SchedulerID identifies the scheduler that produced the recordings.
	// Runs use the scenario name, so it is stable across runs.
	SchedulerID string `json:"scheduler_id"`

	// FinalFrame is the virtual clock after the flush.
	FinalFrame ir.Frame `json:"final_frame"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Errors:        []string{},
		Recordings:    []Recording{},
		Subscriptions: []SubscriptionLog{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Recording returns the named recording, or nil.
func (r *Result) Recording(name string) *Recording {
	for i := range r.Recordings {
		if r.Recordings[i].Name == name {
			return &r.Recordings[i]
		}
	}
	return nil
}

// SubscriptionLog returns the named source's log, or nil.
func (r *Result) SubscriptionLog(source string) *SubscriptionLog {
	for i := range r.Subscriptions {
		if r.Subscriptions[i].Source == source {
			return &r.Subscriptions[i]
		}
	}
	return nil
}
