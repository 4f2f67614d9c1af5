// Package marbletest binds marble assertions to test frameworks: plain
// testing.TB helpers and gomega matchers.
package marbletest

import (
	"fmt"

	"github.com/onsi/gomega/types"

	"github.com/roach88/marbles/internal/assertion"
	"github.com/roach88/marbles/internal/ir"
)

// TB is the subset of testing.TB the helpers use.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
}

// Expect reports a test error when actual differs from expected. It returns
// whether the sequences matched.
func Expect(t TB, actual, expected []ir.TimedMessage, opts ...assertion.Option) bool {
	t.Helper()
	if err := assertion.Equal(actual, expected, opts...); err != nil {
		t.Errorf("%v", err)
		return false
	}
	return true
}

// ExpectSubscriptions reports a test error when two subscription logs differ.
func ExpectSubscriptions(t TB, actual, expected []ir.SubscriptionWindow, opts ...assertion.Option) bool {
	t.Helper()
	if err := assertion.EqualSubscriptions(actual, expected, opts...); err != nil {
		t.Errorf("%v", err)
		return false
	}
	return true
}

// MatchMessages succeeds when the actual []ir.TimedMessage equals expected
// under the marble comparison rules.
func MatchMessages(expected []ir.TimedMessage, opts ...assertion.Option) types.GomegaMatcher {
	return &timelineMatcher[ir.TimedMessage]{
		expected: expected,
		compare:  func(a, e []ir.TimedMessage) error { return assertion.Equal(a, e, opts...) },
	}
}

// MatchSubscriptions succeeds when the actual []ir.SubscriptionWindow equals
// expected.
func MatchSubscriptions(expected []ir.SubscriptionWindow, opts ...assertion.Option) types.GomegaMatcher {
	return &timelineMatcher[ir.SubscriptionWindow]{
		expected: expected,
		compare:  func(a, e []ir.SubscriptionWindow) error { return assertion.EqualSubscriptions(a, e, opts...) },
	}
}

type timelineMatcher[T any] struct {
	expected []T
	compare  func(actual, expected []T) error

	// failure is the diagnostic of the last failed Match.
	failure error
}

func (m *timelineMatcher[T]) Match(actual any) (bool, error) {
	got, ok := actual.([]T)
	if !ok {
		var zero []T
		return false, fmt.Errorf("marbletest: expected %T, got %T", zero, actual)
	}
	m.failure = m.compare(got, m.expected)
	return m.failure == nil, nil
}

func (m *timelineMatcher[T]) FailureMessage(actual any) string {
	if m.failure == nil {
		return fmt.Sprintf("Expected\n\t%v\nto match\n\t%v", actual, m.expected)
	}
	return m.failure.Error()
}

func (m *timelineMatcher[T]) NegatedFailureMessage(actual any) string {
	return fmt.Sprintf("Expected\n\t%v\nnot to match\n\t%v", actual, m.expected)
}
