package marble

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/roach88/marbles/internal/ir"
)

// Diagram tokens.
const (
	TokenIdle        = '-'
	TokenComplete    = '|'
	TokenError       = '#'
	TokenSubscribe   = '^'
	TokenUnsubscribe = '!'
	TokenGroupStart  = '('
	TokenGroupEnd    = ')'
)

// Defaults applied by Config when fields are left zero.
const (
	DefaultFrameTimeFactor = 1
	DefaultMaxFrameValue   = 1000
	DefaultErrorValue      = "error"
)

// Config controls how a diagram is turned into timed messages.
type Config struct {
	// Values maps value tokens to payloads. Tokens without an entry emit the
	// character itself as a string Scalar.
	Values ir.Values

	// ErrorValue is the payload of '#'. Nil means DefaultErrorValue.
	ErrorValue any

	// ExpandNested resolves Diagram payloads into Nested sequences.
	ExpandNested bool

	// FrameTimeFactor scales each character position. Zero means 1.
	FrameTimeFactor int64

	// MaxFrame drops notifications at later frames.
	// Zero means DefaultMaxFrameValue × FrameTimeFactor.
	MaxFrame ir.Frame

	// ForbidSubscriptionPoint rejects '^' (used for cold sources).
	ForbidSubscriptionPoint bool
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.FrameTimeFactor == 0 {
		c.FrameTimeFactor = DefaultFrameTimeFactor
	}
	if c.MaxFrame == 0 {
		if c.FrameTimeFactor > math.MaxInt64/DefaultMaxFrameValue {
			c.MaxFrame = ir.Never - 1
		} else {
			c.MaxFrame = ir.Frame(DefaultMaxFrameValue * c.FrameTimeFactor)
		}
	}
	if c.ErrorValue == nil {
		c.ErrorValue = DefaultErrorValue
	}
	return c
}

func (c Config) validate(diagram string) error {
	if c.FrameTimeFactor < 0 {
		return newParseError(ErrCodeInvalidConfig, diagram, -1, "frame time factor must be positive, got %d", c.FrameTimeFactor)
	}
	if c.MaxFrame < 0 {
		return newParseError(ErrCodeInvalidConfig, diagram, -1, "max frame must be non-negative, got %d", c.MaxFrame)
	}
	// Positions are scaled by the factor; the largest must still fit a frame.
	if n := int64(utf8.RuneCountInString(diagram)); n > 0 && c.FrameTimeFactor > (math.MaxInt64-1)/n {
		return newParseError(ErrCodeInvalidConfig, diagram, -1, "frame time factor %d overflows frames for a diagram of %d positions", c.FrameTimeFactor, n)
	}
	return nil
}

// event is a parsed notification before rebasing and scaling.
type event struct {
	tick         int64
	notification ir.Notification
}

// Parse converts an observable diagram into timed messages ordered by frame,
// then by position in the diagram.
func Parse(diagram string, cfg Config) ([]ir.TimedMessage, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.validate(diagram); err != nil {
		return nil, err
	}

	var (
		events     []event
		tick       int64
		inGroup    bool
		groupTick  int64
		groupPos   int
		origin     int64
		hasOrigin  bool
		originPos  int
		runeOffset = -1
	)

	for _, r := range diagram {
		runeOffset++
		pos := runeOffset

		if isLayout(r) {
			continue
		}

		current := tick
		if inGroup {
			current = groupTick
		}

		switch r {
		case TokenGroupStart:
			if inGroup {
				return nil, newParseError(ErrCodeNestedGroup, diagram, pos, "group opened inside the group started at position %d", groupPos)
			}
			inGroup = true
			groupTick = tick
			groupPos = pos
			continue
		case TokenGroupEnd:
			if !inGroup {
				return nil, newParseError(ErrCodeUnbalancedGroup, diagram, pos, "unmatched %q", TokenGroupEnd)
			}
			inGroup = false
			tick++
			continue
		case TokenIdle:
		case TokenUnsubscribe:
			return nil, newParseError(ErrCodeUnexpectedToken, diagram, pos, "unsubscription point is only valid in subscription diagrams")
		case TokenSubscribe:
			if cfg.ForbidSubscriptionPoint {
				return nil, newParseError(ErrCodeUnexpectedToken, diagram, pos, "subscription point is not allowed here")
			}
			if hasOrigin {
				return nil, newParseError(ErrCodeDuplicateSubscription, diagram, pos, "subscription point already set at position %d", originPos)
			}
			hasOrigin = true
			origin = current
			originPos = pos
		case TokenComplete:
			events = append(events, event{tick: current, notification: ir.Complete()})
		case TokenError:
			events = append(events, event{tick: current, notification: ir.Error(cfg.ErrorValue)})
		default:
			v, err := lookupValue(r, cfg)
			if err != nil {
				return nil, err
			}
			events = append(events, event{tick: current, notification: ir.Next(v)})
		}

		if !inGroup {
			tick++
		}
	}

	if inGroup {
		return nil, newParseError(ErrCodeUnbalancedGroup, diagram, groupPos, "unclosed %q", TokenGroupStart)
	}

	msgs := make([]ir.TimedMessage, 0, len(events))
	for _, ev := range events {
		frame := ir.Frame((ev.tick - origin) * cfg.FrameTimeFactor)
		if frame > cfg.MaxFrame {
			continue
		}
		msgs = append(msgs, ir.TimedMessage{Frame: frame, Notification: ev.notification})
	}

	return msgs, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when the diagram is known to be valid.
func MustParse(diagram string, cfg Config) []ir.TimedMessage {
	msgs, err := Parse(diagram, cfg)
	if err != nil {
		panic(err)
	}
	return msgs
}

// lookupValue resolves a value token against the configured map.
func lookupValue(r rune, cfg Config) (ir.Value, error) {
	v, ok := cfg.Values[r]
	if !ok {
		return ir.V(string(r)), nil
	}
	if !cfg.ExpandNested {
		return v, nil
	}
	resolved, err := ResolveNested(v, cfg)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", string(r), err)
	}
	return resolved, nil
}

// ResolveNested expands Diagram payloads into Nested sequences, recursing
// into payloads of already-nested messages. Scalars are returned unchanged.
// The inner diagram uses its own values and error payload but the outer
// frame-time factor and max frame.
func ResolveNested(v ir.Value, cfg Config) (ir.Value, error) {
	cfg = cfg.WithDefaults()

	switch val := v.(type) {
	case ir.Diagram:
		inner, err := Parse(val.Marble, Config{
			Values:          val.Values,
			ErrorValue:      val.Error,
			ExpandNested:    true,
			FrameTimeFactor: cfg.FrameTimeFactor,
			MaxFrame:        cfg.MaxFrame,
		})
		if err != nil {
			return nil, err
		}
		return ir.Nested{Messages: inner}, nil
	case ir.Nested:
		out := make([]ir.TimedMessage, len(val.Messages))
		for i, m := range val.Messages {
			out[i] = m
			if m.Notification.Kind != ir.KindNext {
				continue
			}
			resolved, err := ResolveNested(m.Notification.Value, cfg)
			if err != nil {
				return nil, fmt.Errorf("nested[%d]: %w", i, err)
			}
			out[i].Notification.Value = resolved
		}
		return ir.Nested{Messages: out}, nil
	default:
		return v, nil
	}
}

// isLayout reports whether r is ignored whitespace.
func isLayout(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
