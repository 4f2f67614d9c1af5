package assertion

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

type config struct {
	errorComparator ErrorComparator
	frameTimeFactor int64
}

// Option configures a comparison.
type Option func(*config)

// WithErrorComparator replaces DefaultErrorComparator for Error payloads,
// including those inside nested sequences.
func WithErrorComparator(cmp ErrorComparator) Option {
	return func(c *config) {
		c.errorComparator = cmp
	}
}

// WithFrameTimeFactor sets the factor used to render diagrams in diagnostics.
// Default: 1.
func WithFrameTimeFactor(factor int64) Option {
	return func(c *config) {
		c.frameTimeFactor = factor
	}
}

func newConfig(opts []Option) config {
	c := config{
		errorComparator: DefaultErrorComparator,
		frameTimeFactor: marble.DefaultFrameTimeFactor,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.errorComparator == nil {
		c.errorComparator = DefaultErrorComparator
	}
	return c
}

// Equal compares two message sequences. It returns nil when they match and
// an *AssertionError describing the first divergence otherwise.
func Equal(actual, expected []ir.TimedMessage, opts ...Option) error {
	cfg := newConfig(opts)

	idx, ok := firstDivergence(len(actual), len(expected), func(i int) bool {
		return cfg.messageEqual(actual[i], expected[i])
	})
	if ok {
		return nil
	}

	e := &AssertionError{
		Kind:            mismatchKind(len(actual), len(expected)),
		Subject:         SubjectMessages,
		Index:           idx,
		ActualLen:       len(actual),
		ExpectedLen:     len(expected),
		ActualDiagram:   marble.Describe(actual, cfg.frameTimeFactor),
		ExpectedDiagram: marble.Describe(expected, cfg.frameTimeFactor),
		Diff:            unifiedDiff(lines(actual), lines(expected)),
	}
	if idx < len(actual) {
		e.Actual = actual[idx]
	}
	if idx < len(expected) {
		e.Expected = expected[idx]
	}
	return e
}

// EqualSubscriptions compares two subscription logs.
func EqualSubscriptions(actual, expected []ir.SubscriptionWindow, opts ...Option) error {
	cfg := newConfig(opts)

	idx, ok := firstDivergence(len(actual), len(expected), func(i int) bool {
		return actual[i] == expected[i]
	})
	if ok {
		return nil
	}

	e := &AssertionError{
		Kind:            mismatchKind(len(actual), len(expected)),
		Subject:         SubjectSubscriptions,
		Index:           idx,
		ActualLen:       len(actual),
		ExpectedLen:     len(expected),
		ActualDiagram:   renderWindows(actual, cfg.frameTimeFactor),
		ExpectedDiagram: renderWindows(expected, cfg.frameTimeFactor),
		Diff:            unifiedDiff(lines(actual), lines(expected)),
	}
	if idx < len(actual) {
		e.Actual = actual[idx]
	}
	if idx < len(expected) {
		e.Expected = expected[idx]
	}
	return e
}

// firstDivergence returns the first index where eq fails, or the shorter
// length when one side is a prefix of the other. ok is true when the
// sequences are equal.
func firstDivergence(actualLen, expectedLen int, eq func(i int) bool) (int, bool) {
	n := min(actualLen, expectedLen)
	for i := 0; i < n; i++ {
		if !eq(i) {
			return i, false
		}
	}
	if actualLen != expectedLen {
		return n, false
	}
	return 0, true
}

func mismatchKind(actualLen, expectedLen int) MismatchKind {
	if actualLen != expectedLen {
		return KindLengthMismatch
	}
	return KindContentMismatch
}

func (c config) messageEqual(actual, expected ir.TimedMessage) bool {
	if actual.Frame != expected.Frame || actual.Notification.Kind != expected.Notification.Kind {
		return false
	}
	switch expected.Notification.Kind {
	case ir.KindNext:
		return c.valueEqual(actual.Notification.Value, expected.Notification.Value)
	case ir.KindError:
		return c.errorComparator(actual.Notification.Err, expected.Notification.Err)
	default:
		return true
	}
}

func (c config) valueEqual(actual, expected ir.Value) bool {
	an, aNested := actual.(ir.Nested)
	en, eNested := expected.(ir.Nested)
	if aNested && eNested {
		if len(an.Messages) != len(en.Messages) {
			return false
		}
		for i := range en.Messages {
			if !c.messageEqual(an.Messages[i], en.Messages[i]) {
				return false
			}
		}
		return true
	}
	return assert.ObjectsAreEqual(expected, actual)
}

func lines[T fmt.Stringer](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.String() + "\n"
	}
	return out
}

func unifiedDiff(actual, expected []string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        expected,
		B:        actual,
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return diff
}

func renderWindows(windows []ir.SubscriptionWindow, factor int64) string {
	out := make([]string, len(windows))
	for i, w := range windows {
		out[i] = fmt.Sprintf("%q", marble.RenderSubscription(w, factor))
	}
	return fmt.Sprintf("%v", out)
}
