package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// DefinitionError reports an invalid field registry definition.
type DefinitionError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *DefinitionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileRegistry builds a Registry from a CUE value of the form:
//
//	field: Age: {type: "int"}
//	field: Path: {type: "string", caseInsensitive: true}
//	contentTypes: ["Folder", "Document"]
//
// Both sections are optional. The well-known fields are always present.
func CompileRegistry(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	reg := NewRegistry()

	fieldsVal := v.LookupPath(cue.ParsePath("field"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			f, err := parseField(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			if err := reg.AddField(f); err != nil {
				return nil, &DefinitionError{
					Field:   "field." + f.Name,
					Message: err.Error(),
					Pos:     iter.Value().Pos(),
				}
			}
		}
	}

	typesVal := v.LookupPath(cue.ParsePath("contentTypes"))
	if typesVal.Exists() {
		iter, err := typesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if _, err := reg.DeclareType(name); err != nil {
				return nil, &DefinitionError{
					Field:   "contentTypes",
					Message: err.Error(),
					Pos:     iter.Value().Pos(),
				}
			}
		}
	}

	return reg, nil
}

// parseField parses one field declaration.
func parseField(name string, v cue.Value) (Field, error) {
	f := Field{Name: name}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return f, &DefinitionError{
			Field:   fmt.Sprintf("field.%s.type", name),
			Message: "field type is required",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return f, formatCUEError(err)
	}
	f.Type, err = ParseDataType(typeName)
	if err != nil {
		return f, &DefinitionError{
			Field:   fmt.Sprintf("field.%s.type", name),
			Message: err.Error(),
			Pos:     typeVal.Pos(),
		}
	}

	ciVal := v.LookupPath(cue.ParsePath("caseInsensitive"))
	if ciVal.Exists() {
		f.CaseInsensitive, err = ciVal.Bool()
		if err != nil {
			return f, formatCUEError(err)
		}
	}

	return f, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &DefinitionError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
