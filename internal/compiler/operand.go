package compiler

import "github.com/roach88/contentq/internal/expr"

// HandlerMember is the member of a content item that holds its polymorphic
// content handler. Fields read through it are fields of the item.
const HandlerMember = "ContentHandler"

func stripConvert(n expr.Node) expr.Node {
	for {
		u, ok := n.(*expr.Unary)
		if !ok || u.Op != expr.UnaryConvert {
			return n
		}
		n = u.Operand
	}
}

// isContent reports whether n is the content item itself: the lambda
// parameter or its content handler.
func isContent(n expr.Node) bool {
	switch n := stripConvert(n).(type) {
	case *expr.Parameter:
		return true
	case *expr.Member:
		_, ok := stripConvert(n.Owner).(*expr.Parameter)
		return ok && n.Name == HandlerMember
	}
	return false
}

// isField reports whether n reads a field of the content item.
func isField(n expr.Node) bool {
	switch n := stripConvert(n).(type) {
	case *expr.Member:
		return isContent(n.Owner)
	case *expr.Index:
		return isContent(n.Owner)
	}
	return false
}

// fieldName extracts the field read by n: a member access on the content
// item, or its string-keyed indexer with a literal key.
func fieldName(n expr.Node) (string, error) {
	switch m := stripConvert(n).(type) {
	case *expr.Member:
		if isContent(m.Owner) {
			return m.Name, nil
		}
	case *expr.Index:
		if !isContent(m.Owner) {
			break
		}
		key, ok := m.Key.(*expr.Constant)
		if !ok {
			return "", nonConstant(m, "indexer key")
		}
		name, ok := key.Value.(string)
		if !ok {
			return "", unsupported(m, "indexer key of type %T", key.Value)
		}
		return name, nil
	}
	return "", unsupported(n, "expected a field of the content item")
}
