package expr

import "reflect"

// Lift wraps a host value as a Constant. Nodes are returned as is.
func Lift(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	return &Constant{Value: v}
}

// Value returns a Constant node.
func Value(v any) *Constant { return &Constant{Value: v} }

// Param returns a named lambda parameter.
func Param(name string) *Parameter { return &Parameter{Name: name} }

// Field reads a member of owner.
func Field(owner Node, name string) *Member { return &Member{Owner: owner, Name: name} }

// Item reads owner[key] through the dynamic string-keyed indexer.
func Item(owner Node, key string) *Index {
	return &Index{Owner: owner, Key: Value(key)}
}

func binary(op Op, l, r any) *Binary {
	return &Binary{Op: op, Left: Lift(l), Right: Lift(r)}
}

func Eq(l, r any) *Binary  { return binary(OpEqual, l, r) }
func Ne(l, r any) *Binary  { return binary(OpNotEqual, l, r) }
func Lt(l, r any) *Binary  { return binary(OpLessThan, l, r) }
func Le(l, r any) *Binary  { return binary(OpLessThanOrEqual, l, r) }
func Gt(l, r any) *Binary  { return binary(OpGreaterThan, l, r) }
func Ge(l, r any) *Binary  { return binary(OpGreaterThanOrEqual, l, r) }
func And(l, r any) *Binary { return binary(OpAndAlso, l, r) }
func Or(l, r any) *Binary  { return binary(OpOrElse, l, r) }
func Add(l, r any) *Binary { return binary(OpAdd, l, r) }
func Sub(l, r any) *Binary { return binary(OpSubtract, l, r) }
func Mul(l, r any) *Binary { return binary(OpMultiply, l, r) }

// Not negates a boolean expression.
func Not(n any) *Unary { return &Unary{Op: UnaryNot, Operand: Lift(n)} }

// Convert converts n to t. A conversion to bool over an indexer is how a
// dynamic boolean field is read.
func Convert(n any, t reflect.Type) *Unary {
	return &Unary{Op: UnaryConvert, Operand: Lift(n), Type: t}
}

// If returns test ? then : els.
func If(test, then, els any) *Conditional {
	return &Conditional{Test: Lift(test), Then: Lift(then), Else: Lift(els)}
}

// Is returns "n is t".
func Is(n any, t reflect.Type) *TypeTest {
	return &TypeTest{Operand: Lift(n), Type: t}
}

// Lambda1 builds a single-parameter lambda. body receives the parameter.
func Lambda1(name string, body func(x *Parameter) Node) *Lambda {
	p := Param(name)
	return &Lambda{Param: p, Body: body(p)}
}

// Invoke calls recv.kind(args...). recv may be nil for static operations.
func Invoke(kind CallKind, recv any, args ...any) *Call {
	c := &Call{Kind: kind, Args: make([]Node, len(args))}
	if recv != nil {
		c.Receiver = Lift(recv)
	}
	for i, a := range args {
		c.Args[i] = Lift(a)
	}
	return c
}

// Func calls a host function. The call must fold to a constant.
func Func(fn any, args ...any) *Call {
	c := Invoke(CallFunc, nil, args...)
	c.Func = fn
	return c
}

func StartsWith(s, prefix any) *Call { return Invoke(CallStartsWith, s, prefix) }
func EndsWith(s, suffix any) *Call   { return Invoke(CallEndsWith, s, suffix) }
func Contains(s, item any) *Call     { return Invoke(CallContains, s, item) }

// GetType reads the runtime type of n.
func GetType(n any) *Call { return Invoke(CallGetType, n) }

// IsAssignableFrom tests whether values of type from are assignable to t.
func IsAssignableFrom(t reflect.Type, from any) *Call {
	return Invoke(CallIsAssignableFrom, Value(t), from)
}

// Query is a fluent builder over a content query chain rooted at Source.
// Each method returns a new Query; the receiver is never modified.
type Query struct {
	node Node
}

// From starts a query over the whole content set.
func From() Query { return Query{node: &Source{}} }

// Node returns the built expression tree.
func (q Query) Node() Node { return q.node }

func (q Query) call(kind CallKind, args ...any) Query {
	return Query{node: Invoke(kind, q.node, args...)}
}

func lambda(fn func(x *Parameter) Node) *Lambda { return Lambda1("x", fn) }

func (q Query) Where(pred func(x *Parameter) Node) Query {
	return q.call(CallWhere, lambda(pred))
}

// OfType keeps only content of type t.
func (q Query) OfType(t reflect.Type) Query {
	c := Invoke(CallOfType, q.node)
	c.TypeArg = t
	return Query{node: c}
}

func (q Query) Take(n any) Query { return q.call(CallTake, n) }
func (q Query) Skip(n any) Query { return q.call(CallSkip, n) }

func (q Query) OrderBy(key func(x *Parameter) Node) Query {
	return q.call(CallOrderBy, lambda(key))
}

func (q Query) OrderByDescending(key func(x *Parameter) Node) Query {
	return q.call(CallOrderByDescending, lambda(key))
}

func (q Query) ThenBy(key func(x *Parameter) Node) Query {
	return q.call(CallThenBy, lambda(key))
}

func (q Query) ThenByDescending(key func(x *Parameter) Node) Query {
	return q.call(CallThenByDescending, lambda(key))
}

// terminal applies a result operator with an optional inline predicate.
func (q Query) terminal(kind CallKind, pred []func(x *Parameter) Node) Query {
	if len(pred) == 0 {
		return q.call(kind)
	}
	return q.call(kind, lambda(pred[0]))
}

func (q Query) Count(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallCount, pred)
}

func (q Query) LongCount(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallLongCount, pred)
}

func (q Query) Any(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallAny, pred)
}

func (q Query) First(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallFirst, pred)
}

func (q Query) FirstOrDefault(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallFirstOrDefault, pred)
}

func (q Query) Single(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallSingle, pred)
}

func (q Query) SingleOrDefault(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallSingleOrDefault, pred)
}

func (q Query) Last(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallLast, pred)
}

func (q Query) LastOrDefault(pred ...func(x *Parameter) Node) Query {
	return q.terminal(CallLastOrDefault, pred)
}

func (q Query) ElementAt(n any) Query          { return q.call(CallElementAt, n) }
func (q Query) ElementAtOrDefault(n any) Query { return q.call(CallElementAtOrDefault, n) }
