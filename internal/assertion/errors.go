package assertion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// MismatchKind categorizes assertion failures.
type MismatchKind string

const (
	// KindLengthMismatch indicates the sequences have different lengths.
	KindLengthMismatch MismatchKind = "LENGTH_MISMATCH"

	// KindContentMismatch indicates same-length sequences differ at Index.
	KindContentMismatch MismatchKind = "CONTENT_MISMATCH"
)

// Subjects of a comparison.
const (
	SubjectMessages      = "messages"
	SubjectSubscriptions = "subscriptions"
)

// AssertionError is returned when two timelines differ.
// It carries the first divergence and enough context to debug it.
type AssertionError struct {
	Kind    MismatchKind
	Subject string // SubjectMessages or SubjectSubscriptions

	// Index is the first position where the sequences differ. For a length
	// mismatch with a common prefix it is the length of the shorter side.
	Index int

	// Actual and Expected are the elements at Index, or nil past the end.
	Actual   any
	Expected any

	ActualLen   int
	ExpectedLen int

	// ActualDiagram and ExpectedDiagram render both sides as diagrams.
	ActualDiagram   string
	ExpectedDiagram string

	// Diff is a unified diff of the two sequences, one element per line.
	Diff string
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s of %s at index %d\n", e.Kind, e.Subject, e.Index)

	fmt.Fprintf(&buf, "  Expected: %s (%d)\n", e.ExpectedDiagram, e.ExpectedLen)
	fmt.Fprintf(&buf, "  Actual:   %s (%d)\n", e.ActualDiagram, e.ActualLen)

	fmt.Fprintf(&buf, "\nExpected[%d]: %s", e.Index, describeElement(e.Expected))
	fmt.Fprintf(&buf, "Actual[%d]:   %s", e.Index, describeElement(e.Actual))

	if e.Diff != "" {
		fmt.Fprintf(&buf, "\nDiff:\n%s", e.Diff)
	}

	return buf.String()
}

func describeElement(v any) string {
	if v == nil {
		return "<none>\n"
	}
	return fmt.Sprintf("%v\n%s", v, dumper.Sdump(v))
}

// IsAssertionError returns true if err wraps an *AssertionError.
func IsAssertionError(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// IsLengthMismatch returns true if err is a length mismatch.
// Uses errors.As to handle wrapped errors.
func IsLengthMismatch(err error) bool {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae.Kind == KindLengthMismatch
	}
	return false
}

// IsContentMismatch returns true if err is a same-length content mismatch.
// Uses errors.As to handle wrapped errors.
func IsContentMismatch(err error) bool {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae.Kind == KindContentMismatch
	}
	return false
}
