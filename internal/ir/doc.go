// Package ir provides the shared data model for marble tests.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the timed-message model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Time is measured in virtual frames, never wall-clock durations
//   - Next payloads are a sealed union (Scalar, Nested, Diagram)
//   - All JSON tags use snake_case
//   - Snapshot serialization goes through MarshalCanonical only
package ir
