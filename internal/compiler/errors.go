package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/schema"
)

// CompileError represents a failure to lower a source expression.
//
// Compile errors include:
//   - Unsupported construct: node kind, call or argument shape not recognized
//   - Non-constant argument: a position that must be a literal after folding
//   - Unknown field or type: propagated from the field resolver or type mapper
//   - Protocol violation: the GetType/IsAssignableFrom idiom used out of shape
//
// Every compile error is fatal; no partial predicate is ever returned.
type CompileError struct {
	// Code identifies the error category.
	Code CompileErrorCode

	// Construct names the offending expression node.
	Construct string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// CompileErrorCode categorizes compile errors.
type CompileErrorCode string

const (
	// ErrCodeUnsupported indicates a node kind, call or argument shape the
	// compiler does not recognize.
	ErrCodeUnsupported CompileErrorCode = "UNSUPPORTED_CONSTRUCT"

	// ErrCodeNonConstant indicates an argument that must be a literal.
	ErrCodeNonConstant CompileErrorCode = "NON_CONSTANT_ARGUMENT"

	// ErrCodeUnknownField indicates a field the resolver does not know.
	ErrCodeUnknownField CompileErrorCode = "UNKNOWN_FIELD"

	// ErrCodeUnknownType indicates a host type with no content-type name.
	ErrCodeUnknownType CompileErrorCode = "UNKNOWN_TYPE"

	// ErrCodeProtocol indicates a malformed GetType/IsAssignableFrom idiom.
	ErrCodeProtocol CompileErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeFoldFailed indicates a parameter-free subtree failed to evaluate.
	ErrCodeFoldFailed CompileErrorCode = "FOLD_FAILED"
)

const materializeHint = "materialize the sequence before this call to evaluate it in memory"

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Construct != "" {
		msg = fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Construct)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code CompileErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsUnsupported returns true if err is an unsupported-construct error.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// IsNonConstant returns true if err is a non-constant-argument error.
func IsNonConstant(err error) bool { return hasCode(err, ErrCodeNonConstant) }

// IsUnknownField returns true if err reports an unknown field.
// Uses errors.Is so a bare schema.ErrUnknownField also matches.
func IsUnknownField(err error) bool {
	return hasCode(err, ErrCodeUnknownField) || errors.Is(err, schema.ErrUnknownField)
}

// IsUnknownType returns true if err reports an unknown content type.
func IsUnknownType(err error) bool {
	return hasCode(err, ErrCodeUnknownType) || errors.Is(err, schema.ErrUnknownType)
}

// IsProtocolViolation returns true if err is a GetType/IsAssignableFrom
// protocol violation.
func IsProtocolViolation(err error) bool { return hasCode(err, ErrCodeProtocol) }

// IsFoldFailure returns true if constant folding failed.
func IsFoldFailure(err error) bool { return hasCode(err, ErrCodeFoldFailed) }

func unsupported(n expr.Node, format string, args ...any) *CompileError {
	return &CompileError{
		Code:      ErrCodeUnsupported,
		Construct: expr.Describe(n),
		Message:   fmt.Sprintf(format, args...) + "; " + materializeHint,
	}
}

func nonConstant(n expr.Node, what string) *CompileError {
	return &CompileError{
		Code:      ErrCodeNonConstant,
		Construct: expr.Describe(n),
		Message:   what + " must be a constant",
	}
}

func protocol(n expr.Node, format string, args ...any) *CompileError {
	return &CompileError{
		Code:      ErrCodeProtocol,
		Construct: expr.Describe(n),
		Message:   fmt.Sprintf(format, args...),
	}
}

// resolveError classifies a resolver failure, keeping the original error
// reachable through errors.Is.
func resolveError(n expr.Node, err error) *CompileError {
	code := ErrCodeUnsupported
	switch {
	case errors.Is(err, schema.ErrUnknownField):
		code = ErrCodeUnknownField
	case errors.Is(err, schema.ErrUnknownType):
		code = ErrCodeUnknownType
	}
	return &CompileError{
		Code:      code,
		Construct: expr.Describe(n),
		Message:   "cannot resolve operand",
		Err:       err,
	}
}
