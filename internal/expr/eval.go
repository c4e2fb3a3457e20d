package expr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNotEvaluable is returned by Eval for nodes that only have meaning to the
// compiler (parameters, lambdas, the content source, query operators).
var ErrNotEvaluable = errors.New("expression cannot be evaluated on the host")

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Eval evaluates a parameter-free expression host-side.
//
// Arithmetic on integers is carried out in int64, on floats in float64.
// String + string concatenates. Member access resolves exported struct
// fields, zero-argument methods and string-keyed map entries.
func Eval(n Node) (any, error) {
	switch n := n.(type) {
	case *Constant:
		return n.Value, nil
	case *Binary:
		return evalBinary(n)
	case *Unary:
		return evalUnary(n)
	case *Member:
		owner, err := Eval(n.Owner)
		if err != nil {
			return nil, err
		}
		return member(owner, n.Name)
	case *Index:
		owner, err := Eval(n.Owner)
		if err != nil {
			return nil, err
		}
		key, err := Eval(n.Key)
		if err != nil {
			return nil, err
		}
		return index(owner, key)
	case *Conditional:
		test, err := Eval(n.Test)
		if err != nil {
			return nil, err
		}
		b, ok := test.(bool)
		if !ok {
			return nil, fmt.Errorf("conditional test is %T, not bool", test)
		}
		if b {
			return Eval(n.Then)
		}
		return Eval(n.Else)
	case *TypeTest:
		v, err := Eval(n.Operand)
		if err != nil {
			return nil, err
		}
		return isType(v, n.Type), nil
	case *Call:
		return evalCall(n)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotEvaluable, Describe(n))
	}
}

func evalBinary(n *Binary) (any, error) {
	left, err := Eval(n.Left)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit.
	if n.Op == OpAndAlso || n.Op == OpOrElse {
		l, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("%s operand is %T, not bool", n.Op, left)
		}
		if n.Op == OpAndAlso && !l {
			return false, nil
		}
		if n.Op == OpOrElse && l {
			return true, nil
		}
		right, err := Eval(n.Right)
		if err != nil {
			return nil, err
		}
		r, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("%s operand is %T, not bool", n.Op, right)
		}
		return r, nil
	}

	right, err := Eval(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpEqual:
		return equal(left, right), nil
	case OpNotEqual:
		return !equal(left, right), nil
	}

	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, fmt.Errorf("cannot apply %s to string and %T", n.Op, right)
		}
		return stringOp(n.Op, ls, rs)
	}

	l, lok := number(left)
	r, rok := number(right)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", n.Op, left, right)
	}
	if l.isFloat || r.isFloat {
		return floatOp(n.Op, l.float(), r.float())
	}
	return intOp(n.Op, l.i, r.i)
}

func evalUnary(n *Unary) (any, error) {
	v, err := Eval(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case UnaryNot:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		return !b, nil
	case UnaryNegate:
		num, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		if num.isFloat {
			return -num.f, nil
		}
		return -num.i, nil
	case UnaryConvert:
		return convert(v, n.Type)
	default:
		return nil, fmt.Errorf("unknown unary operator %s", n.Op)
	}
}

func evalCall(n *Call) (any, error) {
	var recv any
	if n.Receiver != nil {
		r, err := Eval(n.Receiver)
		if err != nil {
			return nil, err
		}
		recv = r
	}
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.Kind {
	case CallFunc:
		if recv != nil {
			args = append([]any{recv}, args...)
		}
		return invoke(n.Func, args)
	case CallStartsWith, CallEndsWith:
		s, sub, err := stringPair(n.Kind, recv, args)
		if err != nil {
			return nil, err
		}
		if n.Kind == CallStartsWith {
			return strings.HasPrefix(s, sub), nil
		}
		return strings.HasSuffix(s, sub), nil
	case CallContains:
		if len(args) != 1 {
			return nil, fmt.Errorf("Contains takes one argument, got %d", len(args))
		}
		return contains(recv, args[0])
	case CallODataStartsWith, CallODataEndsWith, CallODataSubstringOf:
		if len(args) != 2 {
			return nil, fmt.Errorf("%s takes two arguments, got %d", n.Kind, len(args))
		}
		a, aok := args[0].(string)
		b, bok := args[1].(string)
		if !aok || !bok {
			return nil, fmt.Errorf("%s requires string arguments", n.Kind)
		}
		switch n.Kind {
		case CallODataStartsWith:
			return strings.HasPrefix(a, b), nil
		case CallODataEndsWith:
			return strings.HasSuffix(a, b), nil
		default:
			// substringof(needle, haystack)
			return strings.Contains(b, a), nil
		}
	case CallGetType:
		return reflect.TypeOf(recv), nil
	case CallIsAssignableFrom:
		target, ok := recv.(reflect.Type)
		if !ok || len(args) != 1 {
			return nil, fmt.Errorf("IsAssignableFrom requires a type receiver and one type argument")
		}
		from, ok := args[0].(reflect.Type)
		if !ok {
			return nil, fmt.Errorf("IsAssignableFrom argument is %T, not a type", args[0])
		}
		return assignable(from, target), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotEvaluable, Describe(n))
	}
}

func stringPair(kind CallKind, recv any, args []any) (string, string, error) {
	s, ok := recv.(string)
	if !ok {
		return "", "", fmt.Errorf("%s receiver is %T, not string", kind, recv)
	}
	if len(args) != 1 {
		return "", "", fmt.Errorf("%s takes one argument, got %d", kind, len(args))
	}
	sub, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("%s argument is %T, not string", kind, args[0])
	}
	return s, sub, nil
}

func contains(recv, item any) (any, error) {
	if s, ok := recv.(string); ok {
		sub, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("Contains argument is %T, not string", item)
		}
		return strings.Contains(s, sub), nil
	}
	rv := reflect.ValueOf(recv)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		k := reflect.ValueOf(item)
		if !k.IsValid() || !k.Type().AssignableTo(rv.Type().Key()) {
			return false, nil
		}
		return rv.MapIndex(k).IsValid(), nil
	}
	return nil, fmt.Errorf("Contains receiver is %T", recv)
}

func invoke(fn any, args []any) (any, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("Func holds %T, not a function", fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		if len(args) < ft.NumIn()-1 {
			return nil, fmt.Errorf("function takes at least %d arguments, got %d", ft.NumIn()-1, len(args))
		}
	} else if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("function takes %d arguments, got %d", ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		v, err := argValue(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return results(fv.Call(in))
}

func argValue(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(pt), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(pt) {
		return v, nil
	}
	if v.Type().ConvertibleTo(pt) {
		return v.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, pt)
}

// results unpacks the return values of a reflected call. A trailing error
// result is returned as the error.
func results(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		return nil, fmt.Errorf("function returns %d values", len(out))
	}
}

func member(owner any, name string) (any, error) {
	rv := reflect.ValueOf(owner)
	if !rv.IsValid() {
		return nil, fmt.Errorf("member %s of nil", name)
	}
	if m := rv.MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 {
		return results(m.Call(nil))
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("member %s of nil %s", name, rv.Type())
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if v.IsValid() {
				return v.Interface(), nil
			}
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%s has no member %s", rv.Type(), name)
}

func index(owner, key any) (any, error) {
	rv := reflect.ValueOf(owner)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("index of nil")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		k, err := argValue(key, rv.Type().Key())
		if err != nil {
			return nil, err
		}
		v := rv.MapIndex(k)
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Slice, reflect.Array, reflect.String:
		num, ok := number(key)
		if !ok || num.isFloat {
			return nil, fmt.Errorf("index key is %T, not an integer", key)
		}
		if num.i < 0 || num.i >= int64(rv.Len()) {
			return nil, fmt.Errorf("index %d out of range", num.i)
		}
		return rv.Index(int(num.i)).Interface(), nil
	}
	return nil, fmt.Errorf("%T is not indexable", owner)
}

func convert(v any, t reflect.Type) (any, error) {
	if t == nil || v == nil {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == t {
		return v, nil
	}
	if t.Kind() == reflect.Interface {
		if rv.Type().Implements(t) {
			return v, nil
		}
		return nil, fmt.Errorf("%T does not implement %s", v, t)
	}
	if !rv.Type().ConvertibleTo(t) {
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	}
	return rv.Convert(t).Interface(), nil
}

func isType(v any, t reflect.Type) bool {
	if v == nil || t == nil {
		return false
	}
	return assignable(reflect.TypeOf(v), t)
}

func assignable(from, to reflect.Type) bool {
	if from == nil || to == nil {
		return false
	}
	if to.Kind() == reflect.Interface {
		return from.Implements(to)
	}
	if from.AssignableTo(to) {
		return true
	}
	return from.Kind() == reflect.Pointer && from.Elem() == to
}

func equal(a, b any) bool {
	if an, ok := number(a); ok {
		if bn, ok := number(b); ok {
			if an.isFloat || bn.isFloat {
				return an.float() == bn.float()
			}
			return an.i == bn.i
		}
	}
	return reflect.DeepEqual(a, b)
}

type numeric struct {
	i       int64
	f       float64
	isFloat bool
}

func (n numeric) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func number(v any) (numeric, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numeric{i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return numeric{i: int64(rv.Uint())}, true
	case reflect.Float32, reflect.Float64:
		return numeric{f: rv.Float(), isFloat: true}, true
	}
	return numeric{}, false
}

func intOp(op Op, l, r int64) (any, error) {
	switch op {
	case OpLessThan:
		return l < r, nil
	case OpLessThanOrEqual:
		return l <= r, nil
	case OpGreaterThan:
		return l > r, nil
	case OpGreaterThanOrEqual:
		return l >= r, nil
	case OpAdd:
		return l + r, nil
	case OpSubtract:
		return l - r, nil
	case OpMultiply:
		return l * r, nil
	case OpDivide, OpModulo:
		if r == 0 {
			return nil, errors.New("integer division by zero")
		}
		if op == OpDivide {
			return l / r, nil
		}
		return l % r, nil
	}
	return nil, fmt.Errorf("unsupported integer operator %s", op)
}

func floatOp(op Op, l, r float64) (any, error) {
	switch op {
	case OpLessThan:
		return l < r, nil
	case OpLessThanOrEqual:
		return l <= r, nil
	case OpGreaterThan:
		return l > r, nil
	case OpGreaterThanOrEqual:
		return l >= r, nil
	case OpAdd:
		return l + r, nil
	case OpSubtract:
		return l - r, nil
	case OpMultiply:
		return l * r, nil
	case OpDivide:
		return l / r, nil
	}
	return nil, fmt.Errorf("unsupported float operator %s", op)
}

func stringOp(op Op, l, r string) (any, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpLessThan:
		return l < r, nil
	case OpLessThanOrEqual:
		return l <= r, nil
	case OpGreaterThan:
		return l > r, nil
	case OpGreaterThanOrEqual:
		return l >= r, nil
	}
	return nil, fmt.Errorf("unsupported string operator %s", op)
}
