package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Value is a sealed interface over Next payloads.
// Only Scalar, Nested and Diagram implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Scalar wraps an arbitrary caller value.
type Scalar struct {
	V any
}

func (Scalar) value() {}

// Nested is a materialized inner sequence. Frames are relative to the
// frame at which the outer stream emitted the payload.
type Nested struct {
	Messages []TimedMessage
}

func (Nested) value() {}

// Diagram is an inner stream described by a marble diagram that has not been
// parsed yet. The parser resolves it into Nested when nested expansion is on;
// recorders resolve it when they observe one.
type Diagram struct {
	Marble string
	Values Values
	Error  any
}

func (Diagram) value() {}

// Values maps single-character diagram tokens to payloads.
type Values map[rune]Value

// V wraps v as a Scalar.
func V(v any) Value {
	return Scalar{V: v}
}

// Seq wraps already-timed messages as a Nested payload.
func Seq(msgs ...TimedMessage) Value {
	return Nested{Messages: msgs}
}

// Inner describes a nested stream by diagram.
func Inner(marble string, values Values) Value {
	return Diagram{Marble: marble, Values: values}
}

// Scalars builds a Values map wrapping every entry as a Scalar.
func Scalars[T any](m map[rune]T) Values {
	out := make(Values, len(m))
	for k, v := range m {
		out[k] = Scalar{V: v}
	}
	return out
}

// FormatValue renders a payload for diagnostics.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Scalar:
		return fmt.Sprintf("%v", val.V)
	case Nested:
		return FormatMessages(val.Messages)
	case Diagram:
		return fmt.Sprintf("diagram(%q)", val.Marble)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortedRunes returns the keys of a Values map in code point order.
func (vs Values) sortedRunes() []rune {
	keys := make([]rune, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String renders the map deterministically.
func (vs Values) String() string {
	parts := make([]string, 0, len(vs))
	for _, k := range vs.sortedRunes() {
		parts = append(parts, fmt.Sprintf("%c=%s", k, FormatValue(vs[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
