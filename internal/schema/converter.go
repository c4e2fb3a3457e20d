package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/contentq/internal/predicate"
)

// Identifiable is implemented by host values that reference a content item.
type Identifiable interface {
	ContentID() int64
}

// NewConverter returns the converter for a data type.
// Case folding only applies to string fields.
func NewConverter(t DataType, caseInsensitive bool) Converter {
	switch t {
	case DataTypeInt:
		return intConverter{}
	case DataTypeBool:
		return boolConverter{}
	case DataTypeDateTime:
		return dateTimeConverter{}
	case DataTypeReference:
		return referenceConverter{}
	default:
		return stringConverter{fold: caseInsensitive}
	}
}

// stringConverter normalizes strings to NFC and optionally lowercases them.
type stringConverter struct {
	fold bool
}

func (c stringConverter) Normalize(raw any) (predicate.Value, error) {
	if isNull(raw) {
		return predicate.Null{}, nil
	}
	s, err := c.text(raw)
	if err != nil {
		return nil, err
	}
	return predicate.String(s), nil
}

func (c stringConverter) NormalizeForWildcard(raw any) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("cannot use nil in a wildcard pattern")
	}
	s, err := c.text(raw)
	if err != nil {
		return "", err
	}
	return EscapeWildcard(s), nil
}

func (c stringConverter) text(raw any) (string, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case predicate.String:
		s = string(v)
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.String {
			return "", fmt.Errorf("cannot convert %T to string", raw)
		}
		s = rv.String()
	}
	s = norm.NFC.String(s)
	if c.fold {
		// Casers are stateful and must not be shared across goroutines.
		s = cases.Lower(language.Und).String(s)
	}
	return s, nil
}

// EscapeWildcard escapes characters with wildcard meaning so the string
// matches literally inside a pattern.
func EscapeWildcard(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == '*' || r == '?' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// intConverter normalizes integral numbers to int64.
type intConverter struct{}

func (intConverter) Normalize(raw any) (predicate.Value, error) {
	if isNull(raw) {
		return predicate.Null{}, nil
	}
	n, err := toInt64(raw)
	if err != nil {
		return nil, err
	}
	return predicate.Int(n), nil
}

func (intConverter) NormalizeForWildcard(raw any) (string, error) {
	return "", fmt.Errorf("wildcard patterns require a string field, got int value %v", raw)
}

// boolConverter normalizes booleans.
type boolConverter struct{}

func (boolConverter) Normalize(raw any) (predicate.Value, error) {
	if isNull(raw) {
		return predicate.Null{}, nil
	}
	switch v := raw.(type) {
	case bool:
		return predicate.Bool(v), nil
	case predicate.Bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to bool", v)
		}
		return predicate.Bool(b), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", raw)
	}
}

func (boolConverter) NormalizeForWildcard(raw any) (string, error) {
	return "", fmt.Errorf("wildcard patterns require a string field, got bool value %v", raw)
}

// dateTimeConverter normalizes instants to Unix milliseconds in UTC.
type dateTimeConverter struct{}

func (dateTimeConverter) Normalize(raw any) (predicate.Value, error) {
	if isNull(raw) {
		return predicate.Null{}, nil
	}
	switch v := raw.(type) {
	case time.Time:
		return predicate.Int(v.UTC().UnixMilli()), nil
	case *time.Time:
		if v == nil {
			return predicate.Null{}, nil
		}
		return predicate.Int(v.UTC().UnixMilli()), nil
	case predicate.Int:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to datetime: %w", v, err)
		}
		return predicate.Int(t.UTC().UnixMilli()), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to datetime", raw)
	}
}

func (dateTimeConverter) NormalizeForWildcard(raw any) (string, error) {
	return "", fmt.Errorf("wildcard patterns require a string field, got datetime value %v", raw)
}

// referenceConverter normalizes referenced content items to their Id.
type referenceConverter struct{}

func (referenceConverter) Normalize(raw any) (predicate.Value, error) {
	if isNull(raw) {
		return predicate.Null{}, nil
	}
	switch v := raw.(type) {
	case Identifiable:
		return predicate.Int(v.ContentID()), nil
	default:
		n, err := toInt64(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to a content reference", raw)
		}
		return predicate.Int(n), nil
	}
}

func (referenceConverter) NormalizeForWildcard(raw any) (string, error) {
	return "", fmt.Errorf("wildcard patterns require a string field, got reference %v", raw)
}

func isNull(raw any) bool {
	if raw == nil {
		return true
	}
	_, ok := raw.(predicate.Null)
	return ok
}

// toInt64 converts any integral host value to int64.
func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case predicate.Int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int", v)
		}
		return n, nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("non-integral value %v cannot be indexed as int", f)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", raw)
	}
}
