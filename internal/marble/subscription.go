package marble

import (
	"github.com/roach88/marbles/internal/ir"
)

// ParseSubscription converts a subscription diagram into a window.
//
// '^' marks the subscription frame and '!' the unsubscription frame. Without
// '!' the window stays open (Unsubscribed is ir.Never); without any marker
// both ends are ir.Never. Frames past maxFrame clamp to ir.Never.
//
// Zero frameTimeFactor means 1; zero maxFrame means the default limit.
func ParseSubscription(diagram string, frameTimeFactor int64, maxFrame ir.Frame) (ir.SubscriptionWindow, error) {
	cfg := Config{FrameTimeFactor: frameTimeFactor, MaxFrame: maxFrame}.WithDefaults()
	if err := cfg.validate(diagram); err != nil {
		return ir.SubscriptionWindow{}, err
	}

	var (
		tick       int64
		inGroup    bool
		groupTick  int64
		groupPos   int
		subTick    int64 = -1
		unsubTick  int64 = -1
		subPos     int
		unsubPos   int
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
				return ir.SubscriptionWindow{}, newParseError(ErrCodeNestedGroup, diagram, pos, "group opened inside the group started at position %d", groupPos)
			}
			inGroup = true
			groupTick = tick
			groupPos = pos
			continue
		case TokenGroupEnd:
			if !inGroup {
				return ir.SubscriptionWindow{}, newParseError(ErrCodeUnbalancedGroup, diagram, pos, "unmatched %q", TokenGroupEnd)
			}
			inGroup = false
			tick++
			continue
		case TokenIdle:
		case TokenSubscribe:
			if subTick >= 0 {
				return ir.SubscriptionWindow{}, newParseError(ErrCodeDuplicateSubscription, diagram, pos, "subscription point already set at position %d", subPos)
			}
			if unsubTick >= 0 {
				return ir.SubscriptionWindow{}, newParseError(ErrCodeMisorderedSubscription, diagram, pos, "subscription point after unsubscription point at position %d", unsubPos)
			}
			subTick = current
			subPos = pos
		case TokenUnsubscribe:
			if unsubTick >= 0 {
				return ir.SubscriptionWindow{}, newParseError(ErrCodeDuplicateUnsubscription, diagram, pos, "unsubscription point already set at position %d", unsubPos)
			}
			if subTick < 0 {
				return ir.SubscriptionWindow{}, newParseError(ErrCodeMisorderedSubscription, diagram, pos, "unsubscription point without a preceding subscription point")
			}
			unsubTick = current
			unsubPos = pos
		default:
			return ir.SubscriptionWindow{}, newParseError(ErrCodeUnexpectedToken, diagram, pos, "unexpected %q in subscription diagram", r)
		}

		if !inGroup {
			tick++
		}
	}

	if inGroup {
		return ir.SubscriptionWindow{}, newParseError(ErrCodeUnbalancedGroup, diagram, groupPos, "unclosed %q", TokenGroupStart)
	}

	return ir.SubscriptionWindow{
		Subscribed:   scaleTick(subTick, cfg),
		Unsubscribed: scaleTick(unsubTick, cfg),
	}, nil
}

// MustParseSubscription is like ParseSubscription but panics on error.
func MustParseSubscription(diagram string, frameTimeFactor int64, maxFrame ir.Frame) ir.SubscriptionWindow {
	w, err := ParseSubscription(diagram, frameTimeFactor, maxFrame)
	if err != nil {
		panic(err)
	}
	return w
}

// scaleTick converts a marker tick into a frame; -1 (absent) and frames past
// the limit become ir.Never.
func scaleTick(tick int64, cfg Config) ir.Frame {
	if tick < 0 {
		return ir.Never
	}
	frame := ir.Frame(tick * cfg.FrameTimeFactor)
	if frame > cfg.MaxFrame {
		return ir.Never
	}
	return frame
}
