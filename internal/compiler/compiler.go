// Package compiler lowers source expressions into predicate trees.
//
// A compilation is a single call to Compiler.Compile. It folds the
// parameter-free parts of the expression into constants, then walks the tree
// once, keeping a stack of predicate fragments that connectives combine.
// Directives (paging, sort, count and element selection) are collected on
// the way.
//
// The Compiler itself is immutable: all per-call state lives in a lowering
// value created by Compile, so one Compiler may serve concurrent callers as
// long as its resolver and type mapper are safe for concurrent reads.
package compiler

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/schema"
)

// Compiler compiles source expressions against a field resolver and a
// type-name mapper.
type Compiler struct {
	fields schema.FieldResolver
	types  schema.TypeNameMapper
}

// New creates a Compiler.
func New(fields schema.FieldResolver, types schema.TypeNameMapper) *Compiler {
	return &Compiler{fields: fields, types: types}
}

// Compile lowers n into a predicate and directives.
//
// elementType, when non-nil, is the host type of the queried content and
// adds a TypeIs term for it. The returned predicate is nil when the
// expression constrains nothing; it has not been optimized.
func (c *Compiler) Compile(n expr.Node, elementType reflect.Type) (predicate.Predicate, Directives, error) {
	if n == nil {
		return nil, Directives{}, fmt.Errorf("cannot compile nil expression")
	}

	folded, err := expr.Fold(n)
	if err != nil {
		var fe *expr.FoldError
		construct := expr.Describe(n)
		if errors.As(err, &fe) {
			construct = expr.Describe(fe.Node)
		}
		return nil, Directives{}, &CompileError{
			Code:      ErrCodeFoldFailed,
			Construct: construct,
			Message:   "constant folding failed",
			Err:       err,
		}
	}

	l := &lowering{c: c}
	if elementType != nil {
		if err := l.pushTypeTerm(nil, elementType); err != nil {
			return nil, Directives{}, err
		}
	}
	if err := l.visit(folded); err != nil {
		return nil, Directives{}, err
	}

	p, err := l.finish()
	if err != nil {
		return nil, Directives{}, err
	}
	return p, l.dirs, nil
}

// finish resolves any remaining boolean members and conjoins the top-level
// fragments.
func (l *lowering) finish() (predicate.Predicate, error) {
	preds := make([]predicate.Predicate, 0, len(l.stack))
	for _, e := range l.stack {
		p, err := e.resolve()
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	l.stack = nil

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return predicate.And(preds...), nil
	}
}
