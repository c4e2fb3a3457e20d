package predicate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// ToMap converts a predicate tree to plain maps and slices for canonical
// JSON serialization. A nil predicate converts to nil.
func ToMap(p Predicate) (any, error) {
	switch pred := p.(type) {
	case nil:
		return nil, nil
	case Term:
		val, err := valueToAny(pred.Value)
		if err != nil {
			return nil, fmt.Errorf("term %s: %w", pred.Field, err)
		}
		return map[string]any{"term": map[string]any{
			"field": pred.Field,
			"value": val,
		}}, nil
	case Range:
		body := map[string]any{
			"field":       pred.Field,
			"exclude_min": pred.ExcludeMin,
			"exclude_max": pred.ExcludeMax,
		}
		if pred.Min != nil {
			val, err := valueToAny(pred.Min)
			if err != nil {
				return nil, fmt.Errorf("range %s min: %w", pred.Field, err)
			}
			body["min"] = val
		}
		if pred.Max != nil {
			val, err := valueToAny(pred.Max)
			if err != nil {
				return nil, fmt.Errorf("range %s max: %w", pred.Field, err)
			}
			body["max"] = val
		}
		return map[string]any{"range": body}, nil
	case Wildcard:
		return map[string]any{"wildcard": map[string]any{
			"field":   pred.Field,
			"pattern": pred.Pattern,
		}}, nil
	case Logical:
		clauses := make([]any, len(pred.Clauses))
		for i, c := range pred.Clauses {
			inner, err := ToMap(c.Predicate)
			if err != nil {
				return nil, fmt.Errorf("clause[%d]: %w", i, err)
			}
			clauses[i] = map[string]any{
				"occur":     c.Occur.String(),
				"predicate": inner,
			}
		}
		return map[string]any{"bool": clauses}, nil
	default:
		return nil, fmt.Errorf("unknown predicate type: %T", p)
	}
}

// MarshalJSON produces canonical JSON for a predicate tree.
func MarshalJSON(p Predicate) ([]byte, error) {
	m, err := ToMap(p)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(m)
}

// MarshalCanonical produces canonical JSON for plain Go values.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings are NFC normalized
//  4. No floats (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Value:
		plain, err := valueToAny(val)
		if err != nil {
			return err
		}
		return writeCanonical(buf, plain)
	case string:
		return writeCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysUTF16)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes a JSON string without HTML escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// json.Encoder adds trailing newline
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// compareKeysUTF16 orders keys by UTF-16 code units.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
