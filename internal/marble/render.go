package marble

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/marbles/internal/ir"
)

// legendAlphabet supplies tokens for payloads that have no single-character form.
const legendAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Render converts timed messages back into a diagram. Payloads that render as
// one non-reserved character are written literally; every other payload gets a
// token from the returned legend, so Parse(diagram, Config{Values: legend})
// reproduces msgs. Messages at negative frames are skipped.
func Render(msgs []ir.TimedMessage, frameTimeFactor int64) (string, ir.Values) {
	if frameTimeFactor <= 0 {
		frameTimeFactor = DefaultFrameTimeFactor
	}

	// Group tokens by tick, keeping emission order within a tick.
	type slot struct {
		tick   int64
		tokens []rune
	}
	var slots []slot

	legend := ir.Values{}
	assigned := map[string]rune{}
	used := literalTokens(msgs)
	next := 0

	tokenFor := func(n ir.Notification) rune {
		switch n.Kind {
		case ir.KindComplete:
			return TokenComplete
		case ir.KindError:
			return TokenError
		}
		if r, ok := literalToken(n.Value); ok {
			return r
		}
		key := ir.FormatValue(n.Value)
		if r, ok := assigned[key]; ok {
			return r
		}
		for next < len(legendAlphabet) {
			r := rune(legendAlphabet[next])
			next++
			if !used[r] {
				assigned[key] = r
				legend[r] = n.Value
				return r
			}
		}
		return '?'
	}

	for _, m := range msgs {
		if m.Frame < 0 {
			continue
		}
		tick := int64(m.Frame) / frameTimeFactor
		tok := tokenFor(m.Notification)
		if n := len(slots); n > 0 && slots[n-1].tick == tick {
			slots[n-1].tokens = append(slots[n-1].tokens, tok)
			continue
		}
		slots = append(slots, slot{tick: tick, tokens: []rune{tok}})
	}

	var b strings.Builder
	var cursor int64
	for _, s := range slots {
		for ; cursor < s.tick; cursor++ {
			b.WriteRune(TokenIdle)
		}
		if len(s.tokens) == 1 {
			b.WriteRune(s.tokens[0])
		} else {
			b.WriteRune(TokenGroupStart)
			for _, tok := range s.tokens {
				b.WriteRune(tok)
			}
			b.WriteRune(TokenGroupEnd)
		}
		cursor = s.tick + 1
	}

	if len(legend) == 0 {
		legend = nil
	}
	return b.String(), legend
}

// RenderLegend formats a legend for display, e.g. "a=[0:Next(1)], b=42".
func RenderLegend(legend ir.Values) string {
	if len(legend) == 0 {
		return ""
	}
	s := legend.String()
	return strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
}

// literalToken returns the single-character form of a scalar string payload.
func literalToken(v ir.Value) (rune, bool) {
	sc, ok := v.(ir.Scalar)
	if !ok {
		return 0, false
	}
	s, ok := sc.V.(string)
	if !ok || utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if isReserved(r) {
		return 0, false
	}
	return r, true
}

// literalTokens collects characters already used literally, so legend tokens
// never collide with them.
func literalTokens(msgs []ir.TimedMessage) map[rune]bool {
	used := map[rune]bool{}
	for _, m := range msgs {
		if m.Notification.Kind != ir.KindNext {
			continue
		}
		if r, ok := literalToken(m.Notification.Value); ok {
			used[r] = true
		}
	}
	return used
}

func isReserved(r rune) bool {
	switch r {
	case TokenIdle, TokenComplete, TokenError, TokenSubscribe, TokenUnsubscribe, TokenGroupStart, TokenGroupEnd:
		return true
	}
	return isLayout(r)
}

// Describe renders msgs as a quoted diagram followed by its legend, for
// one-line diagnostics.
func Describe(msgs []ir.TimedMessage, frameTimeFactor int64) string {
	diagram, legend := Render(msgs, frameTimeFactor)
	if len(legend) == 0 {
		return fmt.Sprintf("%q", diagram)
	}
	return fmt.Sprintf("%q  where %s", diagram, RenderLegend(legend))
}

// RenderSubscription converts a window back into a subscription diagram.
// A window that never subscribes renders as "".
func RenderSubscription(w ir.SubscriptionWindow, frameTimeFactor int64) string {
	if w.Subscribed == ir.Never {
		return ""
	}
	if frameTimeFactor <= 0 {
		frameTimeFactor = DefaultFrameTimeFactor
	}

	sub := int64(w.Subscribed) / frameTimeFactor
	var b strings.Builder
	b.WriteString(strings.Repeat(string(TokenIdle), int(sub)))

	if w.Unsubscribed == ir.Never {
		b.WriteRune(TokenSubscribe)
		return b.String()
	}

	unsub := int64(w.Unsubscribed) / frameTimeFactor
	if unsub == sub {
		b.WriteRune(TokenGroupStart)
		b.WriteRune(TokenSubscribe)
		b.WriteRune(TokenUnsubscribe)
		b.WriteRune(TokenGroupEnd)
		return b.String()
	}

	b.WriteRune(TokenSubscribe)
	b.WriteString(strings.Repeat(string(TokenIdle), int(unsub-sub-1)))
	b.WriteRune(TokenUnsubscribe)
	return b.String()
}
