package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces deterministic JSON for snapshots and fingerprints.
// CRITICAL: This is the ONLY serialization that should be used for golden
// files and recording fingerprints.
//
// Key differences from standard json.Marshal:
// 1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. Timed messages, payloads and windows have a fixed wire shape
// 5. Unknown caller types fall back to their fmt representation
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return marshalCanonicalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case int8:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case int16:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case int32:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case uint:
		return []byte(strconv.FormatUint(uint64(val), 10)), nil
	case uint8:
		return []byte(strconv.FormatUint(uint64(val), 10)), nil
	case uint16:
		return []byte(strconv.FormatUint(uint64(val), 10)), nil
	case uint32:
		return []byte(strconv.FormatUint(uint64(val), 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(val, 10)), nil
	case float32:
		return marshalCanonicalFloat(float64(val))
	case float64:
		return marshalCanonicalFloat(val)
	case Frame:
		if val == Never {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Value:
		return marshalCanonicalValue(val)
	case TimedMessage:
		return marshalCanonicalMessage(val)
	case []TimedMessage:
		arr := make([]any, len(val))
		for i, m := range val {
			arr[i] = m
		}
		return marshalCanonicalArray(arr)
	case SubscriptionWindow:
		return marshalCanonicalObject(map[string]any{
			"subscribed":   val.Subscribed,
			"unsubscribed": val.Unsubscribed,
		})
	case []SubscriptionWindow:
		arr := make([]any, len(val))
		for i, w := range val {
			arr[i] = w
		}
		return marshalCanonicalArray(arr)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalCanonicalArray(arr)
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	case error:
		return marshalCanonicalString(val.Error())
	default:
		return marshalCanonicalString(fmt.Sprintf("%v", val))
	}
}

// marshalCanonicalFloat renders floats in shortest round-trip form.
// NaN and infinities have no JSON form and are rendered as strings.
func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return marshalCanonicalString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// marshalCanonicalValue renders a Next payload.
func marshalCanonicalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Scalar:
		return marshalCanonical(val.V)
	case Nested:
		return marshalCanonical(val.Messages)
	case Diagram:
		obj := map[string]any{"marble": val.Marble}
		if len(val.Values) > 0 {
			values := make(map[string]any, len(val.Values))
			for k, inner := range val.Values {
				values[string(k)] = inner
			}
			obj["values"] = values
		}
		if val.Error != nil {
			obj["error"] = val.Error
		}
		return marshalCanonicalObject(obj)
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// marshalCanonicalMessage renders a timed message as {"frame","kind",...}.
func marshalCanonicalMessage(m TimedMessage) ([]byte, error) {
	obj := map[string]any{
		"frame": m.Frame,
		"kind":  string(m.Notification.Kind),
	}
	switch m.Notification.Kind {
	case KindNext:
		obj["value"] = m.Notification.Value
	case KindError:
		obj["error"] = m.Notification.Err
	}
	return marshalCanonicalObject(obj)
}

// marshalCanonicalString produces canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	// NFC normalize at serialization boundary
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators undoes encoding/json's \u2028 and \u2029 escapes.
// An escape preceded by an odd number of backslashes is literal text and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+6 <= len(data) && string(data[i+1:i+5]) == "u202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// marshalCanonicalArray marshals an array to canonical JSON.
func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalCanonicalObject marshals an object with UTF-16 key ordering.
func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// compareKeysUTF16 compares strings using UTF-16 code unit ordering.
// CRITICAL: Go's default string comparison uses UTF-8 which produces DIFFERENT order.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
