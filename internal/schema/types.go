// Package schema defines the field metadata contracts consumed by the
// content query compiler and an in-memory registry implementing them.
//
// The compiler never interprets raw values itself. Every field name is
// resolved to a DataType and a Converter, and every value placed in a
// predicate leaf passes through Converter.Normalize first.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/contentq/internal/predicate"
)

// DataType is the declared index type of a field.
type DataType int

const (
	DataTypeString DataType = iota
	DataTypeInt
	DataTypeBool
	DataTypeDateTime
	DataTypeReference
)

var dataTypeNames = map[DataType]string{
	DataTypeString:    "string",
	DataTypeInt:       "int",
	DataTypeBool:      "bool",
	DataTypeDateTime:  "datetime",
	DataTypeReference: "reference",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType maps a registry type name to a DataType.
func ParseDataType(name string) (DataType, error) {
	for t, n := range dataTypeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("invalid field type %q: must be one of string, int, bool, datetime, reference", name)
}

// Converter normalizes raw host values into index values for one field.
//
// Normalize must be idempotent on its own output:
// Normalize(Normalize(v)) == Normalize(v).
type Converter interface {
	Normalize(raw any) (predicate.Value, error)
	NormalizeForWildcard(raw any) (string, error)
}

// FieldResolver maps a field name to its data type and converter.
// Implementations must be safe for concurrent reads.
type FieldResolver interface {
	Resolve(field string) (DataType, Converter, error)
}

// TypeNameMapper maps a host content type to its content-type name.
// The boolean is false when the type has no content-type name.
type TypeNameMapper interface {
	NameForType(t reflect.Type) (string, bool)
}

var (
	// ErrUnknownField is returned by Resolve for unregistered field names.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownType is returned when a host type has no content-type name.
	ErrUnknownType = errors.New("unknown content type")
)

// Well-known fields every registry carries.
const (
	FieldID       = predicate.IDField
	FieldName     = "Name"
	FieldPath     = "Path"
	FieldType     = "Type"
	FieldTypeIs   = "TypeIs"
	FieldInFolder = "InFolder"
	FieldInTree   = "InTree"
)
