package compiler

import (
	"fmt"
	"reflect"

	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/schema"
)

// memberOrigin records how a boolean member reached the stack.
type memberOrigin int

const (
	// originImplicit is a bare boolean member such as x.IsActive.
	originImplicit memberOrigin = iota
	// originComparison is an explicit comparison such as x.IsActive == true.
	originComparison
)

// boolMember is a boolean field assertion that stays open until it is
// combined or compilation ends, so that a following negation can flip it in
// place instead of wrapping it.
type boolMember struct {
	field   string
	value   bool
	origin  memberOrigin
	negated bool
	conv    schema.Converter
}

func (b *boolMember) term() (predicate.Predicate, error) {
	v, err := b.conv.Normalize(b.value)
	if err != nil {
		return nil, &CompileError{Code: ErrCodeUnsupported, Construct: "member " + b.field, Message: "cannot normalize boolean", Err: err}
	}
	return predicate.Term{Field: b.field, Value: v}, nil
}

// entry is one predicate stack slot: a finished predicate or an open
// boolean member.
type entry struct {
	pred predicate.Predicate
	bm   *boolMember
}

func (e entry) resolve() (predicate.Predicate, error) {
	if e.bm != nil {
		return e.bm.term()
	}
	return e.pred, nil
}

// lowering is the state of one compilation.
type lowering struct {
	c     *Compiler
	stack []entry
	dirs  Directives

	// depth counts enclosing lambdas; query operators are only valid at 0.
	depth int
}

func (l *lowering) push(p predicate.Predicate) {
	l.stack = append(l.stack, entry{pred: p})
}

func (l *lowering) pushMember(b *boolMember) {
	l.stack = append(l.stack, entry{bm: b})
}

func (l *lowering) pop(n expr.Node) (entry, error) {
	if len(l.stack) == 0 {
		return entry{}, unsupported(n, "operator has no operand")
	}
	e := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return e, nil
}

// combine pops two entries and pushes them joined with occ.
//
// Two adjacent boolean members on the same field that assert the same value
// collapse into the later one, under any connective. Members asserting
// different values are always kept. A member that was flipped by a negation
// is never collapsed.
func (l *lowering) combine(n expr.Node, occ predicate.Occurrence) error {
	right, err := l.pop(n)
	if err != nil {
		return err
	}
	left, err := l.pop(n)
	if err != nil {
		return err
	}

	if a, b := left.bm, right.bm; a != nil && b != nil && a.field == b.field &&
		!a.negated && !b.negated && a.value == b.value {
		l.pushMember(b)
		return nil
	}

	lp, err := left.resolve()
	if err != nil {
		return err
	}
	rp, err := right.resolve()
	if err != nil {
		return err
	}
	l.push(predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: lp, Occur: occ},
		{Predicate: rp, Occur: occ},
	}})
	return nil
}

// negate applies logical not to the top of the stack.
func (l *lowering) negate(n expr.Node) error {
	if len(l.stack) > 0 {
		if b := l.stack[len(l.stack)-1].bm; b != nil {
			b.value = !b.value
			b.negated = true
			return nil
		}
	}
	e, err := l.pop(n)
	if err != nil {
		return err
	}
	l.push(predicate.Not(e.pred))
	return nil
}

// visit lowers n. Every predicate-valued node leaves exactly one new entry
// on the stack; query operators leave at most one.
func (l *lowering) visit(n expr.Node) error {
	switch n := n.(type) {
	case *expr.Source:
		if l.depth > 0 {
			return unsupported(n, "nested content source")
		}
		return nil
	case *expr.Lambda:
		l.depth++
		defer func() { l.depth-- }()
		return l.visit(n.Body)
	case *expr.Constant:
		b, ok := n.Value.(bool)
		if !ok {
			return unsupported(n, "constant of type %T used as a condition", n.Value)
		}
		if b {
			l.push(predicate.All())
		} else {
			l.push(predicate.None())
		}
		return nil
	case *expr.Binary:
		return l.visitBinary(n)
	case *expr.Unary:
		return l.visitUnary(n)
	case *expr.Member, *expr.Index:
		return l.implicitMember(n)
	case *expr.TypeTest:
		if !isContent(n.Operand) {
			return unsupported(n, "type test on something other than the content item")
		}
		return l.pushTypeTerm(n, n.Type)
	case *expr.Conditional:
		return l.visitConditional(n)
	case *expr.Call:
		return l.visitCall(n)
	case *expr.Parameter:
		return unsupported(n, "bare parameter used as a condition")
	default:
		return unsupported(n, "unrecognized expression node %T", n)
	}
}

func (l *lowering) visitBinary(n *expr.Binary) error {
	switch {
	case n.Op == expr.OpAndAlso || n.Op == expr.OpOrElse:
		if err := l.visit(n.Left); err != nil {
			return err
		}
		if err := l.visit(n.Right); err != nil {
			return err
		}
		if n.Op == expr.OpAndAlso {
			return l.combine(n, predicate.OccurMust)
		}
		return l.combine(n, predicate.OccurShould)
	case n.Op.IsComparison():
		return l.comparison(n)
	default:
		return unsupported(n, "arithmetic over content fields cannot be translated")
	}
}

func (l *lowering) visitUnary(n *expr.Unary) error {
	switch n.Op {
	case expr.UnaryNot:
		if err := l.visit(n.Operand); err != nil {
			return err
		}
		return l.negate(n)
	case expr.UnaryConvert:
		if n.Type != nil && n.Type.Kind() == reflect.Bool && isField(n.Operand) {
			return l.implicitMember(n.Operand)
		}
		if n.Type == nil || n.Type.Kind() == reflect.Bool {
			return l.visit(n.Operand)
		}
		return unsupported(n, "conversion used as a condition")
	default:
		return unsupported(n, "unary %s used as a condition", n.Op)
	}
}

// implicitMember lowers a bare boolean field read.
func (l *lowering) implicitMember(n expr.Node) error {
	field, err := fieldName(n)
	if err != nil {
		return err
	}
	dt, conv, err := l.c.fields.Resolve(field)
	if err != nil {
		return resolveError(n, err)
	}
	if dt != schema.DataTypeBool {
		return unsupported(n, "field %s is %s, not bool, and cannot stand alone as a condition", field, dt)
	}
	l.pushMember(&boolMember{field: field, value: true, origin: originImplicit, conv: conv})
	return nil
}

// visitConditional lowers test ? a : b. A constant test keeps only the live
// branch; otherwise the node is rewritten to (test && a) || (!test && b).
func (l *lowering) visitConditional(n *expr.Conditional) error {
	if c, ok := n.Test.(*expr.Constant); ok {
		b, ok := c.Value.(bool)
		if !ok {
			return unsupported(n, "conditional test of type %T", c.Value)
		}
		if b {
			return l.visit(n.Then)
		}
		return l.visit(n.Else)
	}
	return l.visit(expr.Or(
		expr.And(n.Test, n.Then),
		expr.And(expr.Not(n.Test), n.Else),
	))
}

// comparison lowers =, ≠, <, ≤, >, ≥ with the constant on the right.
func (l *lowering) comparison(n *expr.Binary) error {
	op, left, right := n.Op, n.Left, n.Right
	if _, ok := left.(*expr.Constant); ok {
		if _, ok := right.(*expr.Constant); !ok {
			op, left, right = op.Mirror(), right, left
		}
	}
	cst, ok := right.(*expr.Constant)
	if !ok {
		if isField(left) && isField(right) {
			return unsupported(n, "comparison between two fields")
		}
		return nonConstant(n, "comparison operand")
	}

	if c, ok := stripConvert(left).(*expr.Call); ok && c.Kind == expr.CallGetType {
		return protocol(n, "GetType result compared directly; use IsAssignableFrom")
	}

	if !isField(left) {
		// A boolean condition compared with a literal: (cond == true),
		// (startswith(x.Name, "a") eq false).
		b, ok := cst.Value.(bool)
		if !ok || (op != expr.OpEqual && op != expr.OpNotEqual) {
			return unsupported(n, "comparison of %s with a constant", expr.Describe(left))
		}
		if err := l.visit(left); err != nil {
			return err
		}
		if (op == expr.OpEqual) != b {
			return l.negate(n)
		}
		return nil
	}

	field, err := fieldName(left)
	if err != nil {
		return err
	}
	dt, conv, err := l.c.fields.Resolve(field)
	if err != nil {
		return resolveError(left, err)
	}
	v, err := conv.Normalize(cst.Value)
	if err != nil {
		return &CompileError{Code: ErrCodeUnsupported, Construct: expr.Describe(n), Message: fmt.Sprintf("cannot convert value for field %s", field), Err: err}
	}

	switch op {
	case expr.OpEqual, expr.OpNotEqual:
		if b, ok := v.(predicate.Bool); ok && dt == schema.DataTypeBool {
			value := bool(b)
			if op == expr.OpNotEqual {
				value = !value
			}
			l.pushMember(&boolMember{field: field, value: value, origin: originComparison, conv: conv})
			return nil
		}
		term := predicate.Term{Field: field, Value: v}
		if op == expr.OpEqual {
			l.push(term)
		} else {
			l.push(predicate.Not(term))
		}
		return nil
	}

	if _, ok := v.(predicate.Null); ok {
		return unsupported(n, "ordering comparison against null")
	}
	r := predicate.Range{Field: field}
	switch op {
	case expr.OpLessThan:
		r.Max, r.ExcludeMax = v, true
	case expr.OpLessThanOrEqual:
		r.Max = v
	case expr.OpGreaterThan:
		r.Min, r.ExcludeMin = v, true
	case expr.OpGreaterThanOrEqual:
		r.Min = v
	}
	l.push(r)
	return nil
}

// pushTypeTerm pushes a TypeIs term for host type t.
func (l *lowering) pushTypeTerm(n expr.Node, t reflect.Type) error {
	if t == nil {
		return unsupported(n, "missing type argument")
	}
	name, ok := l.c.types.NameForType(t)
	if !ok {
		return &CompileError{
			Code:      ErrCodeUnknownType,
			Construct: expr.Describe(n),
			Message:   fmt.Sprintf("type %s has no content type name", t),
			Err:       schema.ErrUnknownType,
		}
	}
	return l.pushTypeName(n, schema.FieldTypeIs, name)
}

// pushTypeName pushes a term on the Type or TypeIs field.
func (l *lowering) pushTypeName(n expr.Node, field, name string) error {
	_, conv, err := l.c.fields.Resolve(field)
	if err != nil {
		return resolveError(n, err)
	}
	v, err := conv.Normalize(name)
	if err != nil {
		return resolveError(n, err)
	}
	l.push(predicate.Term{Field: field, Value: v})
	return nil
}
