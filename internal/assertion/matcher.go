package assertion

import (
	"errors"

	"github.com/onsi/gomega/types"
	"github.com/stretchr/testify/assert"
)

// Matcher is an expected value that decides for itself whether an actual
// value matches, e.g. "any error whose message contains 'timeout'".
type Matcher interface {
	Matches(actual any) bool
	String() string
}

// ErrorComparator decides whether an actual Error payload satisfies the
// expected one.
type ErrorComparator func(actual, expected any) bool

type funcMatcher struct {
	desc string
	fn   func(any) bool
}

func (m funcMatcher) Matches(actual any) bool { return m.fn(actual) }
func (m funcMatcher) String() string          { return m.desc }

// Match builds a Matcher from a predicate. desc is shown in diagnostics.
func Match(desc string, fn func(actual any) bool) Matcher {
	return funcMatcher{desc: desc, fn: fn}
}

// Anything matches every value.
func Anything() Matcher {
	return Match("<anything>", func(any) bool { return true })
}

// DefaultErrorComparator compares Error payloads.
//
// The expected value may be:
//   - a gomega matcher (types.GomegaMatcher), applied to the actual value
//   - a Matcher, applied to the actual value
//   - an error, matched with errors.Is or by message
//   - a string, matched against an actual error's message
//
// Anything else is compared with testify's ObjectsAreEqual.
func DefaultErrorComparator(actual, expected any) bool {
	switch exp := expected.(type) {
	case types.GomegaMatcher:
		ok, err := exp.Match(actual)
		return err == nil && ok
	case Matcher:
		return exp.Matches(actual)
	case error:
		if act, ok := actual.(error); ok {
			return errors.Is(act, exp) || act.Error() == exp.Error()
		}
	case string:
		if act, ok := actual.(error); ok {
			return act.Error() == exp
		}
	}
	return assert.ObjectsAreEqual(expected, actual)
}
