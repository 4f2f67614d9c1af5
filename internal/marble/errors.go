package marble

import (
	"errors"
	"fmt"
	"strings"
)

// ParseErrorCode categorizes diagram errors.
type ParseErrorCode string

const (
	// ErrCodeUnbalancedGroup indicates a ')' without '(' or an unclosed '('.
	ErrCodeUnbalancedGroup ParseErrorCode = "UNBALANCED_GROUP"

	// ErrCodeNestedGroup indicates a '(' inside an open group.
	ErrCodeNestedGroup ParseErrorCode = "NESTED_GROUP"

	// ErrCodeDuplicateSubscription indicates more than one '^'.
	ErrCodeDuplicateSubscription ParseErrorCode = "DUPLICATE_SUBSCRIPTION"

	// ErrCodeDuplicateUnsubscription indicates more than one '!'.
	ErrCodeDuplicateUnsubscription ParseErrorCode = "DUPLICATE_UNSUBSCRIPTION"

	// ErrCodeMisorderedSubscription indicates '^' after '!' or '!' without '^'.
	ErrCodeMisorderedSubscription ParseErrorCode = "MISORDERED_SUBSCRIPTION"

	// ErrCodeUnexpectedToken indicates a character the diagram kind does not allow.
	ErrCodeUnexpectedToken ParseErrorCode = "UNEXPECTED_TOKEN"

	// ErrCodeInvalidConfig indicates a negative frame-time factor or max frame,
	// or a factor too large for the diagram's frames to fit in an int64.
	ErrCodeInvalidConfig ParseErrorCode = "INVALID_CONFIG"
)

// ParseError reports a malformed diagram.
// Position is the rune index of the offending token, or -1 when the error is
// not tied to a single token.
type ParseError struct {
	Code     ParseErrorCode
	Message  string
	Diagram  string
	Position int
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s: %s at position %d in %q", e.Code, e.Message, e.Position, e.Diagram)
	}
	return fmt.Sprintf("%s: %s in %q", e.Code, e.Message, e.Diagram)
}

// Pointer renders the diagram with a caret under the offending position.
func (e *ParseError) Pointer() string {
	if e.Position < 0 {
		return e.Diagram
	}
	return e.Diagram + "\n" + strings.Repeat(" ", e.Position) + "^"
}

// IsParseError returns true if err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ParseErrorCodeOf returns the code of a wrapped *ParseError, or "".
func ParseErrorCodeOf(err error) ParseErrorCode {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func newParseError(code ParseErrorCode, diagram string, pos int, format string, args ...any) *ParseError {
	return &ParseError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Diagram:  diagram,
		Position: pos,
	}
}
