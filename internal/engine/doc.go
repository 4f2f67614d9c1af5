// Package engine implements the virtual-time scheduler behind marble tests.
//
// The scheduler is the heart of marbles. It owns a frame clock and a queue of
// actions, and it runs them instantly in virtual time.
//
// ARCHITECTURE:
//
// Single Logical Thread:
// Everything a scheduler drives runs on the caller's goroutine. Concurrency
// is simulated by frame ordering alone, so:
// - Replay order never depends on the host machine
// - Every action scheduled for a frame runs before the clock passes it
// - No locks are needed
//
// Execution Flow:
// 1. Hot(...) / Cold(...) parse a diagram into timed messages
// 2. Hot sources queue every message at its absolute frame right away;
// cold sources queue a copy per subscriber, offset by the subscribing frame
// 3. Record(...) attaches a Recorder to the stream under test
// 4. Flush() / AdvanceTo(f) pop actions in (frame, seq) order and run them
// 5. GetMessages(recorder) returns what arrived, stamped with frames
//
// CRITICAL PATTERNS:
//
// Stable Ordering:
// Actions for the same frame run in the order they were scheduled. The
// clock's sequence counter stamps every action at insertion.
//
// Lazy Cancellation:
// Unsubscribing voids a subscriber's queued actions in place. Voided
// actions are skipped when they reach the front of the queue.
//
// Truncation:
// Actions past the max frame are never executed by Flush. They are not
// an error.
package engine
