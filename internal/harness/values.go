package harness

import (
	"fmt"
	"unicode/utf8"

	"github.com/roach88/marbles/internal/ir"
)

// convertValues turns a scenario values map into ir.Values.
// Keys must be single characters. A map payload with a "marble" key becomes
// an ir.Diagram; everything else is a Scalar.
func convertValues(raw map[string]any) (ir.Values, error) {
	if raw == nil {
		return nil, nil
	}
	values := make(ir.Values, len(raw))
	for key, v := range raw {
		if utf8.RuneCountInString(key) != 1 {
			return nil, fmt.Errorf("values: key %q must be a single character", key)
		}
		r, _ := utf8.DecodeRuneInString(key)

		converted, err := convertValue(v)
		if err != nil {
			return nil, fmt.Errorf("values[%s]: %w", key, err)
		}
		values[r] = converted
	}
	return values, nil
}

func convertValue(v any) (ir.Value, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return ir.V(v), nil
	}
	marbleField, ok := m["marble"]
	if !ok {
		return ir.V(v), nil
	}

	diagram, ok := marbleField.(string)
	if !ok {
		return nil, fmt.Errorf("nested marble must be a string, got %T", marbleField)
	}
	for k := range m {
		switch k {
		case "marble", "values", "error":
		default:
			return nil, fmt.Errorf("nested diagram: unknown field %q", k)
		}
	}

	var inner map[string]any
	if rawValues, ok := m["values"]; ok && rawValues != nil {
		inner, ok = rawValues.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("nested values must be a map, got %T", rawValues)
		}
	}
	values, err := convertValues(inner)
	if err != nil {
		return nil, err
	}

	return ir.Diagram{Marble: diagram, Values: values, Error: m["error"]}, nil
}
