package predicate

import (
	"encoding/json"
	"fmt"
)

// Value is a sealed interface over normalized index values.
// Only Null, String, Int and Bool implement it.
// There is no float variant: numeric fields index as int64 so that range
// bounds compare deterministically.
type Value interface {
	indexValue() // Sealed - only these types implement it
}

// Null is the normalized form of an absent value.
type Null struct{}

func (Null) indexValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a normalized string value.
type String string

func (String) indexValue() {}

// Int is a normalized integer value. Dates and references index as Int too.
type Int int64

func (Int) indexValue() {}

// Bool is a normalized boolean value.
type Bool bool

func (Bool) indexValue() {}

// ValueString renders a value for diagnostics.
func ValueString(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case String:
		return string(val)
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// valueToAny converts a Value to the plain Go value used by the canonical encoder.
func valueToAny(v Value) (any, error) {
	switch val := v.(type) {
	case Null:
		return nil, nil
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
