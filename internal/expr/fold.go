package expr

import "fmt"

// FoldError reports a parameter-free subtree whose host-side evaluation
// failed.
type FoldError struct {
	Node Node
	Err  error
}

func (e *FoldError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", Describe(e.Node), e.Err)
}

func (e *FoldError) Unwrap() error {
	return e.Err
}

// Fold replaces every subtree that does not reference a lambda parameter or
// the content source with a Constant holding its evaluated value. Calls the
// host cannot evaluate (query operators, Type, TypeIs) are never folded.
//
// A tree with no parameter or source reference at all is returned unchanged.
// Fold never mutates n; rewritten paths are freshly allocated and untouched
// subtrees are shared with the input.
func Fold(n Node) (Node, error) {
	f := folder{foldable: make(map[Node]bool)}
	if f.mark(n) {
		return n, nil
	}
	return f.rewrite(n)
}

type folder struct {
	foldable map[Node]bool
}

// mark tags each node bottom-up and reports whether n is foldable.
func (f folder) mark(n Node) bool {
	if n == nil {
		return true
	}
	ok := true
	for _, child := range Children(n) {
		if !f.mark(child) {
			ok = false
		}
	}
	switch n := n.(type) {
	case *Parameter, *Source, *Lambda:
		ok = false
	case *Call:
		if !n.Kind.IsHostEvaluable() {
			ok = false
		}
	}
	f.foldable[n] = ok
	return ok
}

func (f folder) rewrite(n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	if f.foldable[n] {
		if _, ok := n.(*Constant); ok {
			return n, nil
		}
		v, err := Eval(n)
		if err != nil {
			return nil, &FoldError{Node: n, Err: err}
		}
		return &Constant{Value: v}, nil
	}

	switch n := n.(type) {
	case *Binary:
		l, err := f.rewrite(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := f.rewrite(n.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: n.Op, Left: l, Right: r}, nil
	case *Unary:
		op, err := f.rewrite(n.Operand)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: n.Op, Operand: op, Type: n.Type}, nil
	case *Call:
		recv, err := f.rewrite(n.Receiver)
		if err != nil {
			return nil, err
		}
		args := make([]Node, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = f.rewrite(a); err != nil {
				return nil, err
			}
		}
		return &Call{Kind: n.Kind, Receiver: recv, Args: args, TypeArg: n.TypeArg, Func: n.Func}, nil
	case *Member:
		owner, err := f.rewrite(n.Owner)
		if err != nil {
			return nil, err
		}
		return &Member{Owner: owner, Name: n.Name}, nil
	case *Index:
		owner, err := f.rewrite(n.Owner)
		if err != nil {
			return nil, err
		}
		key, err := f.rewrite(n.Key)
		if err != nil {
			return nil, err
		}
		return &Index{Owner: owner, Key: key}, nil
	case *Conditional:
		test, err := f.rewrite(n.Test)
		if err != nil {
			return nil, err
		}
		then, err := f.rewrite(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := f.rewrite(n.Else)
		if err != nil {
			return nil, err
		}
		return &Conditional{Test: test, Then: then, Else: els}, nil
	case *Lambda:
		body, err := f.rewrite(n.Body)
		if err != nil {
			return nil, err
		}
		return &Lambda{Param: n.Param, Body: body}, nil
	case *TypeTest:
		op, err := f.rewrite(n.Operand)
		if err != nil {
			return nil, err
		}
		return &TypeTest{Operand: op, Type: n.Type}, nil
	default:
		// Parameter, Source
		return n, nil
	}
}
