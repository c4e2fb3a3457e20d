package compiler

import (
	"fmt"
	"math"
	"reflect"

	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/schema"
)

func (l *lowering) visitCall(n *expr.Call) error {
	switch n.Kind {
	case expr.CallStartsWith, expr.CallEndsWith, expr.CallContains:
		return l.stringMethod(n)
	case expr.CallODataStartsWith, expr.CallODataEndsWith, expr.CallODataSubstringOf:
		return l.odataFunction(n)
	case expr.CallType, expr.CallTypeIs:
		return l.typeNameCall(n)
	case expr.CallIsAssignableFrom:
		return l.assignableFrom(n)
	case expr.CallGetType:
		return protocol(n, "GetType is only valid as the argument of IsAssignableFrom")
	case expr.CallFunc:
		return unsupported(n, "host function over the content item cannot be translated")
	case expr.CallUnknown:
		return unsupported(n, "unrecognized call")
	}
	return l.queryOperator(n)
}

// queryOperator lowers a call whose receiver is the content sequence.
func (l *lowering) queryOperator(n *expr.Call) error {
	if l.depth > 0 {
		return unsupported(n, "query operator %s inside a lambda", n.Kind)
	}
	if n.Receiver == nil {
		return unsupported(n, "query operator %s without a source", n.Kind)
	}
	if err := l.visit(n.Receiver); err != nil {
		return err
	}

	switch n.Kind {
	case expr.CallWhere:
		lam, err := lambdaArg(n)
		if err != nil {
			return err
		}
		return l.visit(lam)
	case expr.CallOfType:
		return l.pushTypeTerm(n, n.TypeArg)
	case expr.CallTake:
		count, err := intArg(n, "Take count")
		if err != nil {
			return err
		}
		l.dirs.limitTop(max(count, 0))
		return nil
	case expr.CallSkip:
		count, err := intArg(n, "Skip count")
		if err != nil {
			return err
		}
		l.dirs.Skip += max(count, 0)
		return nil
	case expr.CallOrderBy, expr.CallOrderByDescending, expr.CallThenBy, expr.CallThenByDescending:
		return l.sortKey(n)
	case expr.CallElementAt, expr.CallElementAtOrDefault:
		index, err := intArg(n, "element index")
		if err != nil {
			return err
		}
		if index < 0 {
			return unsupported(n, "negative element index %d", index)
		}
		l.dirs.ElementSelection = SelectElementAt
		l.dirs.Skip += index
		l.dirs.limitTop(1)
		l.dirs.ThrowIfEmpty = n.Kind == expr.CallElementAt
		return nil
	}

	if err := l.inlinePredicate(n); err != nil {
		return err
	}

	switch n.Kind {
	case expr.CallCount, expr.CallLongCount:
		l.dirs.CountOnly = true
	case expr.CallAny:
		l.dirs.CountOnly = true
		l.dirs.ExistenceOnly = true
		l.dirs.limitTop(1)
	case expr.CallFirst, expr.CallFirstOrDefault:
		l.dirs.ElementSelection = SelectFirst
		l.dirs.limitTop(1)
		l.dirs.ThrowIfEmpty = n.Kind == expr.CallFirst
	case expr.CallSingle, expr.CallSingleOrDefault:
		l.dirs.ElementSelection = SelectSingle
		l.dirs.limitTop(2)
		l.dirs.ThrowIfEmpty = n.Kind == expr.CallSingle
	case expr.CallLast, expr.CallLastOrDefault:
		l.dirs.ElementSelection = SelectLast
		l.dirs.ThrowIfEmpty = n.Kind == expr.CallLast
	default:
		return unsupported(n, "unrecognized query operator")
	}
	return nil
}

// inlinePredicate lowers the optional predicate argument of a result
// operator, such as Any(x => ...), and joins it with the fragment before it.
func (l *lowering) inlinePredicate(n *expr.Call) error {
	switch len(n.Args) {
	case 0:
		return nil
	case 1:
	default:
		return unsupported(n, "%s takes at most one argument", n.Kind)
	}
	lam, ok := n.Args[0].(*expr.Lambda)
	if !ok {
		return unsupported(n, "%s argument must be a lambda", n.Kind)
	}
	if err := l.visit(lam); err != nil {
		return err
	}
	if len(l.stack) > 1 {
		return l.combine(n, predicate.OccurMust)
	}
	return nil
}

func (l *lowering) sortKey(n *expr.Call) error {
	lam, err := lambdaArg(n)
	if err != nil {
		return err
	}
	field, err := fieldName(lam.Body)
	if err != nil {
		return err
	}
	if _, _, err := l.c.fields.Resolve(field); err != nil {
		return resolveError(lam.Body, err)
	}
	l.dirs.Sort = append(l.dirs.Sort, SortField{Field: field, Reverse: n.Kind.IsDescending()})
	return nil
}

// stringMethod lowers x.F.StartsWith(s), x.F.EndsWith(s), x.F.Contains(s)
// and list.Contains(x.F).
func (l *lowering) stringMethod(n *expr.Call) error {
	if len(n.Args) != 1 {
		return unsupported(n, "%s takes one argument", n.Kind)
	}
	if n.Kind == expr.CallContains {
		if list, ok := n.Receiver.(*expr.Constant); ok && isField(n.Args[0]) {
			return l.memberOf(n, n.Args[0], list.Value)
		}
	}
	if !isField(n.Receiver) {
		return unsupported(n, "%s receiver must be a content field", n.Kind)
	}
	arg, ok := n.Args[0].(*expr.Constant)
	if !ok {
		return nonConstant(n, n.Kind.String()+" argument")
	}

	field, err := fieldName(n.Receiver)
	if err != nil {
		return err
	}
	dt, conv, err := l.c.fields.Resolve(field)
	if err != nil {
		return resolveError(n.Receiver, err)
	}

	if n.Kind == expr.CallContains && dt == schema.DataTypeReference {
		v, err := conv.Normalize(arg.Value)
		if err != nil {
			return &CompileError{Code: ErrCodeUnsupported, Construct: expr.Describe(n), Message: "cannot convert reference", Err: err}
		}
		l.push(predicate.Term{Field: field, Value: v})
		return nil
	}
	return l.pushWildcard(n, field, conv, arg.Value, n.Kind)
}

// odataFunction lowers startswith(x.F, s), endswith(x.F, s) and
// substringof(s, x.F).
func (l *lowering) odataFunction(n *expr.Call) error {
	if len(n.Args) != 2 {
		return unsupported(n, "%s takes two arguments", n.Kind)
	}
	target, value := n.Args[0], n.Args[1]
	if n.Kind == expr.CallODataSubstringOf {
		target, value = value, target
	}
	if !isField(target) {
		return unsupported(n, "%s must be applied to a content field", n.Kind)
	}
	arg, ok := value.(*expr.Constant)
	if !ok {
		return nonConstant(n, n.Kind.String()+" argument")
	}
	field, err := fieldName(target)
	if err != nil {
		return err
	}
	_, conv, err := l.c.fields.Resolve(field)
	if err != nil {
		return resolveError(target, err)
	}
	return l.pushWildcard(n, field, conv, arg.Value, n.Kind)
}

func (l *lowering) pushWildcard(n expr.Node, field string, conv schema.Converter, raw any, kind expr.CallKind) error {
	s, err := conv.NormalizeForWildcard(raw)
	if err != nil {
		return &CompileError{Code: ErrCodeUnsupported, Construct: expr.Describe(n), Message: fmt.Sprintf("cannot match field %s", field), Err: err}
	}
	var pattern string
	switch kind {
	case expr.CallStartsWith, expr.CallODataStartsWith:
		pattern = s + "*"
	case expr.CallEndsWith, expr.CallODataEndsWith:
		pattern = "*" + s
	default:
		pattern = "*" + s + "*"
	}
	l.push(predicate.Wildcard{Field: field, Pattern: pattern})
	return nil
}

// memberOf lowers list.Contains(x.F) to a disjunction of terms. An empty
// list matches nothing.
func (l *lowering) memberOf(n *expr.Call, target expr.Node, list any) error {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return unsupported(n, "Contains receiver of type %T", list)
	}
	field, err := fieldName(target)
	if err != nil {
		return err
	}
	_, conv, err := l.c.fields.Resolve(field)
	if err != nil {
		return resolveError(target, err)
	}
	if rv.Len() == 0 {
		l.push(predicate.None())
		return nil
	}
	terms := make([]predicate.Predicate, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := conv.Normalize(rv.Index(i).Interface())
		if err != nil {
			return &CompileError{Code: ErrCodeUnsupported, Construct: expr.Describe(n), Message: fmt.Sprintf("cannot convert list item %d", i), Err: err}
		}
		terms = append(terms, predicate.Term{Field: field, Value: v})
	}
	if len(terms) == 1 {
		l.push(terms[0])
		return nil
	}
	l.push(predicate.Or(terms...))
	return nil
}

// typeNameCall lowers Type("name") and TypeIs("name").
func (l *lowering) typeNameCall(n *expr.Call) error {
	if n.Receiver != nil && !isContent(n.Receiver) {
		return unsupported(n, "%s must be called on the content item", n.Kind)
	}
	if len(n.Args) != 1 {
		return unsupported(n, "%s takes one argument", n.Kind)
	}
	arg, ok := n.Args[0].(*expr.Constant)
	if !ok {
		return nonConstant(n, "type name")
	}
	name, ok := arg.Value.(string)
	if !ok {
		return unsupported(n, "type name of type %T", arg.Value)
	}
	field := schema.FieldType
	if n.Kind == expr.CallTypeIs {
		field = schema.FieldTypeIs
	}
	return l.pushTypeName(n, field, name)
}

// assignableFrom matches typeof(T).IsAssignableFrom(x.ContentHandler.GetType())
// as one unit and lowers it to a TypeIs term for T.
func (l *lowering) assignableFrom(n *expr.Call) error {
	recv, ok := n.Receiver.(*expr.Constant)
	if !ok {
		return protocol(n, "IsAssignableFrom receiver must be a literal type")
	}
	t, ok := recv.Value.(reflect.Type)
	if !ok {
		return protocol(n, "IsAssignableFrom receiver is %T, not a type", recv.Value)
	}
	if len(n.Args) != 1 {
		return protocol(n, "IsAssignableFrom takes one argument")
	}
	get, ok := n.Args[0].(*expr.Call)
	if !ok || get.Kind != expr.CallGetType {
		return protocol(n, "IsAssignableFrom must test the result of GetType")
	}
	if !isContent(get.Receiver) {
		return protocol(get, "GetType must be called on the content item or its handler")
	}
	return l.pushTypeTerm(n, t)
}

func lambdaArg(n *expr.Call) (*expr.Lambda, error) {
	if len(n.Args) != 1 {
		return nil, unsupported(n, "%s takes one lambda argument", n.Kind)
	}
	lam, ok := n.Args[0].(*expr.Lambda)
	if !ok {
		return nil, unsupported(n, "%s argument must be a lambda", n.Kind)
	}
	return lam, nil
}

// intArg returns the single integer constant argument of n.
func intArg(n *expr.Call, what string) (int, error) {
	if len(n.Args) != 1 {
		return 0, unsupported(n, "%s takes one argument", n.Kind)
	}
	c, ok := n.Args[0].(*expr.Constant)
	if !ok {
		return 0, nonConstant(n, what)
	}
	rv := reflect.ValueOf(c.Value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return int(rv.Int()), nil
	case reflect.Int64:
		i := rv.Int()
		if i > math.MaxInt || i < math.MinInt {
			return 0, unsupported(n, "%s %d overflows int", what, i)
		}
		return int(i), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, unsupported(n, "%s %d overflows int", what, u)
		}
		return int(u), nil
	}
	return 0, unsupported(n, "%s of type %T", what, c.Value)
}
