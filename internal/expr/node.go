// Package expr defines the source expression tree the content query
// compiler reads: a typed, composable query built by the caller.
//
// Node is a sealed sum type. Every node kind is a pointer to a struct in this
// package, so consumers dispatch with an exhaustive type switch:
//
//	switch n := node.(type) {
//	case *Binary:
//	case *Unary:
//	case *Call:
//	case *Member:
//	case *Index:
//	case *Constant:
//	case *Parameter:
//	case *Conditional:
//	case *Lambda:
//	case *TypeTest:
//	case *Source:
//	}
//
// Trees are immutable once built. Fold returns a new tree and leaves its
// input untouched.
package expr

import (
	"fmt"
	"reflect"
)

// Node is a source expression node.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	exprNode() // Marker method - seals interface to this package
}

// Op is a binary operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAndAlso
	OpOrElse
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

var opNames = [...]string{
	OpEqual:              "Equal",
	OpNotEqual:           "NotEqual",
	OpLessThan:           "LessThan",
	OpLessThanOrEqual:    "LessThanOrEqual",
	OpGreaterThan:        "GreaterThan",
	OpGreaterThanOrEqual: "GreaterThanOrEqual",
	OpAndAlso:            "AndAlso",
	OpOrElse:             "OrElse",
	OpAdd:                "Add",
	OpSubtract:           "Subtract",
	OpMultiply:           "Multiply",
	OpDivide:             "Divide",
	OpModulo:             "Modulo",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp resolves a binary operator name.
func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// IsComparison reports whether o is one of =, ≠, <, ≤, >, ≥.
func (o Op) IsComparison() bool {
	return o >= OpEqual && o <= OpGreaterThanOrEqual
}

// Mirror returns the operator with its operands swapped: a < b ⇔ b > a.
func (o Op) Mirror() Op {
	switch o {
	case OpLessThan:
		return OpGreaterThan
	case OpLessThanOrEqual:
		return OpGreaterThanOrEqual
	case OpGreaterThan:
		return OpLessThan
	case OpGreaterThanOrEqual:
		return OpLessThanOrEqual
	default:
		return o
	}
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	UnaryNot UnaryOp = iota
	UnaryConvert
	UnaryNegate
)

func (o UnaryOp) String() string {
	switch o {
	case UnaryNot:
		return "Not"
	case UnaryConvert:
		return "Convert"
	case UnaryNegate:
		return "Negate"
	default:
		return fmt.Sprintf("UnaryOp(%d)", int(o))
	}
}

// Binary applies a comparison, logical or arithmetic operator.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

func (*Binary) exprNode() {}

// Unary applies logical not, negation or a type conversion.
// Type is the conversion target and is only meaningful for UnaryConvert.
type Unary struct {
	Op      UnaryOp
	Operand Node
	Type    reflect.Type
}

func (*Unary) exprNode() {}

// Call invokes a recognized operation.
//
// Receiver is nil for static operations. TypeArg carries the type argument
// of OfType. Func holds the host function for CallFunc.
type Call struct {
	Kind     CallKind
	Receiver Node
	Args     []Node
	TypeArg  reflect.Type
	Func     any
}

func (*Call) exprNode() {}

// Member reads a named member of Owner.
type Member struct {
	Owner Node
	Name  string
}

func (*Member) exprNode() {}

// Index reads Owner[Key] through a dynamic indexer.
type Index struct {
	Owner Node
	Key   Node
}

func (*Index) exprNode() {}

// Constant is a literal host value.
type Constant struct {
	Value any
}

func (*Constant) exprNode() {}

// Parameter is the variable bound by a Lambda.
type Parameter struct {
	Name string
}

func (*Parameter) exprNode() {}

// Conditional is test ? Then : Else.
type Conditional struct {
	Test Node
	Then Node
	Else Node
}

func (*Conditional) exprNode() {}

// Lambda is a single-parameter function literal passed to a query operator.
type Lambda struct {
	Param *Parameter
	Body  Node
}

func (*Lambda) exprNode() {}

// TypeTest is "Operand is Type".
type TypeTest struct {
	Operand Node
	Type    reflect.Type
}

func (*TypeTest) exprNode() {}

// Source is the root content set a query chain starts from.
type Source struct{}

func (*Source) exprNode() {}

// Children returns the direct sub-expressions of n in evaluation order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Unary:
		return []Node{n.Operand}
	case *Call:
		kids := make([]Node, 0, len(n.Args)+1)
		if n.Receiver != nil {
			kids = append(kids, n.Receiver)
		}
		return append(kids, n.Args...)
	case *Member:
		return []Node{n.Owner}
	case *Index:
		return []Node{n.Owner, n.Key}
	case *Conditional:
		return []Node{n.Test, n.Then, n.Else}
	case *Lambda:
		return []Node{n.Body}
	case *TypeTest:
		return []Node{n.Operand}
	default:
		return nil
	}
}

// Describe returns a short human-readable name for a node, used in errors.
func Describe(n Node) string {
	switch n := n.(type) {
	case nil:
		return "<nil>"
	case *Binary:
		return "binary " + n.Op.String()
	case *Unary:
		if n.Op == UnaryConvert && n.Type != nil {
			return "convert to " + n.Type.String()
		}
		return "unary " + n.Op.String()
	case *Call:
		return "call " + n.Kind.String()
	case *Member:
		return "member " + n.Name
	case *Index:
		return "indexer"
	case *Constant:
		return fmt.Sprintf("constant %v", n.Value)
	case *Parameter:
		return "parameter " + n.Name
	case *Conditional:
		return "conditional"
	case *Lambda:
		return "lambda"
	case *TypeTest:
		return "type test " + n.Type.String()
	case *Source:
		return "source"
	default:
		return fmt.Sprintf("%T", n)
	}
}
