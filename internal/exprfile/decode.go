package exprfile

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contentq/internal/expr"
)

// LambdaParam is the parameter name every step lambda binds.
const LambdaParam = "x"

// builtinTypes are the host types a Convert node may target by name.
var builtinTypes = map[string]reflect.Type{
	"bool":    reflect.TypeOf((*bool)(nil)).Elem(),
	"int":     reflect.TypeOf((*int)(nil)).Elem(),
	"int64":   reflect.TypeOf((*int64)(nil)).Elem(),
	"float64": reflect.TypeOf((*float64)(nil)).Elem(),
	"string":  reflect.TypeOf((*string)(nil)).Elem(),
	"time":    reflect.TypeOf((*time.Time)(nil)).Elem(),
}

// decoder turns YAML nodes into expression nodes.
type decoder struct {
	types TypeResolver

	// param is the parameter of the lambda being decoded, nil outside one.
	param *expr.Parameter
}

func errAt(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

// pipeline folds the steps over the content set root.
func (d *decoder) pipeline(steps []yaml.Node) (expr.Node, error) {
	var node expr.Node = &expr.Source{}
	for i := range steps {
		next, err := d.step(&steps[i], node)
		if err != nil {
			return nil, err
		}
		node = next
	}
	return node, nil
}

// step decodes one pipeline step: a bare operator name or a single-key
// mapping from operator name to argument.
func (d *decoder) step(n *yaml.Node, recv expr.Node) (expr.Node, error) {
	var (
		name string
		arg  *yaml.Node
	)
	switch n.Kind {
	case yaml.ScalarNode:
		name = n.Value
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return nil, errAt(n, "a step must have exactly one operator, got %d", len(n.Content)/2)
		}
		name, arg = n.Content[0].Value, n.Content[1]
		if isNull(arg) {
			arg = nil
		}
	default:
		return nil, errAt(n, "a step must be an operator name or a single-key mapping")
	}

	kind, ok := expr.ParseCallKind(name)
	if !ok || !isQueryOperator(kind) {
		return nil, errAt(n, "unknown query operator %q", name)
	}
	call := &expr.Call{Kind: kind, Receiver: recv, Args: []expr.Node{}}

	switch kind {
	case expr.CallOfType:
		if arg == nil || arg.Kind != yaml.ScalarNode {
			return nil, errAt(n, "OfType takes a content type name")
		}
		t, err := d.contentType(arg)
		if err != nil {
			return nil, err
		}
		call.TypeArg = t

	case expr.CallTake, expr.CallSkip, expr.CallElementAt, expr.CallElementAtOrDefault:
		if arg == nil {
			return nil, errAt(n, "%s takes a count", kind)
		}
		count, err := d.expr(arg)
		if err != nil {
			return nil, err
		}
		call.Args = []expr.Node{count}

	default:
		if arg == nil {
			if kind == expr.CallWhere || kind.IsSort() {
				return nil, errAt(n, "%s takes an expression over %s", kind, LambdaParam)
			}
			break
		}
		lam, err := d.lambda(arg)
		if err != nil {
			return nil, err
		}
		call.Args = []expr.Node{lam}
	}
	return call, nil
}

func isQueryOperator(k expr.CallKind) bool {
	switch k {
	case expr.CallWhere, expr.CallOfType, expr.CallTake, expr.CallSkip,
		expr.CallOrderBy, expr.CallOrderByDescending, expr.CallThenBy, expr.CallThenByDescending,
		expr.CallCount, expr.CallLongCount, expr.CallAny,
		expr.CallFirst, expr.CallFirstOrDefault, expr.CallSingle, expr.CallSingleOrDefault,
		expr.CallLast, expr.CallLastOrDefault, expr.CallElementAt, expr.CallElementAtOrDefault:
		return true
	}
	return false
}

// lambda decodes body with the step parameter in scope.
func (d *decoder) lambda(body *yaml.Node) (*expr.Lambda, error) {
	p := expr.Param(LambdaParam)
	outer := d.param
	d.param = p
	defer func() { d.param = outer }()

	b, err := d.expr(body)
	if err != nil {
		return nil, err
	}
	return &expr.Lambda{Param: p, Body: b}, nil
}

// expr decodes an expression node. Scalars and plain sequences are
// constants; mappings have exactly one key naming the node kind.
func (d *decoder) expr(n *yaml.Node) (expr.Node, error) {
	switch n.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		v, err := constant(n)
		if err != nil {
			return nil, err
		}
		return expr.Value(v), nil
	case yaml.AliasNode:
		return d.expr(n.Alias)
	case yaml.MappingNode:
	default:
		return nil, errAt(n, "unexpected YAML node")
	}

	if len(n.Content) != 2 {
		return nil, errAt(n, "an expression mapping must have exactly one key, got %d", len(n.Content)/2)
	}
	key, val := n.Content[0], n.Content[1]

	switch key.Value {
	case "const":
		v, err := constant(val)
		if err != nil {
			return nil, err
		}
		return expr.Value(v), nil
	case "time":
		t, err := time.Parse(time.RFC3339, val.Value)
		if err != nil {
			return nil, errAt(val, "time constant: %v", err)
		}
		return expr.Value(t), nil
	case "type":
		t, err := d.contentType(val)
		if err != nil {
			return nil, err
		}
		return expr.Value(t), nil
	case "param":
		if d.param != nil && val.Value == d.param.Name {
			return d.param, nil
		}
		return expr.Param(val.Value), nil
	case "field":
		return d.field(val)
	case "item":
		owner, err := d.item(val)
		if err != nil {
			return nil, err
		}
		return expr.Item(owner, val.Value), nil
	case "Not", "Negate":
		operand, err := d.expr(val)
		if err != nil {
			return nil, err
		}
		op := expr.UnaryNot
		if key.Value == "Negate" {
			op = expr.UnaryNegate
		}
		return &expr.Unary{Op: op, Operand: operand}, nil
	case "Convert":
		return d.convert(val)
	case "If":
		args, err := d.list(val, 3, 3)
		if err != nil {
			return nil, err
		}
		return &expr.Conditional{Test: args[0], Then: args[1], Else: args[2]}, nil
	case "Is":
		return d.typeTest(val)
	}

	if op, ok := expr.ParseOp(key.Value); ok {
		return d.binary(op, val)
	}
	if kind, ok := expr.ParseCallKind(key.Value); ok {
		return d.call(key, kind, val)
	}
	return nil, errAt(key, "unknown expression kind %q", key.Value)
}

// field decodes a member read on the lambda parameter. Dots descend.
func (d *decoder) field(val *yaml.Node) (expr.Node, error) {
	if d.param == nil {
		return nil, errAt(val, "field %q used outside an expression over %s", val.Value, LambdaParam)
	}
	if val.Kind != yaml.ScalarNode || val.Value == "" {
		return nil, errAt(val, "field takes a member name")
	}
	var node expr.Node = d.param
	for _, part := range strings.Split(val.Value, ".") {
		if part == "" {
			return nil, errAt(val, "empty member name in %q", val.Value)
		}
		node = expr.Field(node, part)
	}
	return node, nil
}

func (d *decoder) item(val *yaml.Node) (expr.Node, error) {
	if d.param == nil {
		return nil, errAt(val, "item %q used outside an expression over %s", val.Value, LambdaParam)
	}
	if val.Kind != yaml.ScalarNode || val.Value == "" {
		return nil, errAt(val, "item takes a key")
	}
	return d.param, nil
}

func (d *decoder) convert(val *yaml.Node) (expr.Node, error) {
	if val.Kind != yaml.MappingNode {
		return nil, errAt(val, "Convert takes {operand, to}")
	}
	var operand, to *yaml.Node
	for i := 0; i+1 < len(val.Content); i += 2 {
		switch k := val.Content[i]; k.Value {
		case "operand":
			operand = val.Content[i+1]
		case "to":
			to = val.Content[i+1]
		default:
			return nil, errAt(k, "Convert: unknown key %q", k.Value)
		}
	}
	if operand == nil || to == nil {
		return nil, errAt(val, "Convert needs operand and to")
	}
	t, ok := builtinTypes[to.Value]
	if !ok {
		return nil, errAt(to, "Convert: unknown target type %q", to.Value)
	}
	node, err := d.expr(operand)
	if err != nil {
		return nil, err
	}
	return expr.Convert(node, t), nil
}

func (d *decoder) typeTest(val *yaml.Node) (expr.Node, error) {
	if val.Kind != yaml.SequenceNode || len(val.Content) != 2 {
		return nil, errAt(val, "Is takes [operand, type name]")
	}
	operand, err := d.expr(val.Content[0])
	if err != nil {
		return nil, err
	}
	t, err := d.contentType(val.Content[1])
	if err != nil {
		return nil, err
	}
	return expr.Is(operand, t), nil
}

// binary decodes [left, right]. AndAlso and OrElse accept longer lists,
// folded to the left.
func (d *decoder) binary(op expr.Op, val *yaml.Node) (expr.Node, error) {
	maxArgs := 2
	if op == expr.OpAndAlso || op == expr.OpOrElse {
		maxArgs = -1
	}
	args, err := d.list(val, 2, maxArgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	node := args[0]
	for _, a := range args[1:] {
		node = &expr.Binary{Op: op, Left: node, Right: a}
	}
	return node, nil
}

// call decodes a method call. Instance methods take [receiver, args...];
// OData functions take their arguments; Type and TypeIs take a name and
// apply to the lambda parameter.
func (d *decoder) call(key *yaml.Node, kind expr.CallKind, val *yaml.Node) (expr.Node, error) {
	if isQueryOperator(kind) {
		return nil, errAt(key, "query operator %s is only valid as a pipeline step", kind)
	}

	switch kind {
	case expr.CallType, expr.CallTypeIs:
		if val.Kind != yaml.ScalarNode {
			return nil, errAt(val, "%s takes a content type name", kind)
		}
		if d.param == nil {
			return nil, errAt(val, "%s used outside an expression over %s", kind, LambdaParam)
		}
		return expr.Invoke(kind, d.param, val.Value), nil

	case expr.CallGetType:
		recv, err := d.expr(val)
		if err != nil {
			return nil, err
		}
		return expr.GetType(recv), nil

	case expr.CallODataStartsWith, expr.CallODataEndsWith, expr.CallODataSubstringOf:
		args, err := d.list(val, 2, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		return &expr.Call{Kind: kind, Args: args}, nil

	case expr.CallStartsWith, expr.CallEndsWith, expr.CallContains, expr.CallIsAssignableFrom:
		args, err := d.list(val, 2, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		return &expr.Call{Kind: kind, Receiver: args[0], Args: args[1:]}, nil
	}
	return nil, errAt(key, "%s cannot be written in a query document", kind)
}

// list decodes a sequence of between lo and hi expressions. hi < 0 means
// no upper bound.
func (d *decoder) list(val *yaml.Node, lo, hi int) ([]expr.Node, error) {
	if val.Kind != yaml.SequenceNode {
		return nil, errAt(val, "expected a list of %d operands", lo)
	}
	if len(val.Content) < lo || (hi >= 0 && len(val.Content) > hi) {
		if lo == hi {
			return nil, errAt(val, "expected %d operands, got %d", lo, len(val.Content))
		}
		return nil, errAt(val, "expected at least %d operands, got %d", lo, len(val.Content))
	}
	out := make([]expr.Node, len(val.Content))
	for i, c := range val.Content {
		n, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (d *decoder) contentType(val *yaml.Node) (reflect.Type, error) {
	if d.types == nil {
		return nil, errAt(val, "no content types configured for %q", val.Value)
	}
	t, ok := d.types.TypeByName(val.Value)
	if !ok {
		return nil, errAt(val, "unknown content type %q", val.Value)
	}
	return t, nil
}

// constant decodes a scalar or a sequence of scalars into a host value.
func constant(n *yaml.Node) (any, error) {
	if n.Kind == yaml.SequenceNode {
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, errAt(c, "list constants may only hold scalars")
			}
		}
	} else if n.Kind != yaml.ScalarNode {
		return nil, errAt(n, "constants must be scalars or lists of scalars")
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, errAt(n, "constant: %v", err)
	}
	return v, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}
