// Package assertion compares recorded timelines against expectations.
//
// Two sequences are equal when they have the same length and every element
// matches: frames and notification kinds exactly, Next payloads by deep
// structural equality (recursing into nested sequences), and Error payloads
// through a pluggable comparator.
//
// Failures are reported as *AssertionError carrying the index of the first
// divergence, both elements at that index, rendered diagrams of both sides
// and a unified diff. A length mismatch and a same-length content mismatch
// are distinct kinds.
package assertion
