package predicate

import (
	"fmt"
	"strings"
)

// ValidationResult lists invariant violations found in a predicate tree.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each violation with its position in the tree.
	Problems []string
}

// Validate checks a predicate tree against the structural invariants:
//  1. Logical nodes have at least one clause
//  2. Leaves name a field
//  3. Range leaves have at least one bound
//  4. Wildcard patterns contain an unescaped '*'
//  5. Leaves hold a Value (nil is not a normalized value)
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) ValidationResult {
	v := &validator{problems: []string{}}
	v.validate(p, "$")
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validate(p Predicate, at string) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("%s: nil predicate", at)
	case Term:
		v.checkField(pred.Field, at)
		if pred.Value == nil {
			v.addProblem("%s: term %q has no value", at, pred.Field)
		}
	case Range:
		v.checkField(pred.Field, at)
		if pred.Min == nil && pred.Max == nil {
			v.addProblem("%s: range %q is unbounded on both sides", at, pred.Field)
		}
	case Wildcard:
		v.checkField(pred.Field, at)
		if countWildcards(pred.Pattern) == 0 {
			v.addProblem("%s: wildcard %q has no unescaped '*'", at, pred.Field)
		}
	case Logical:
		if len(pred.Clauses) == 0 {
			v.addProblem("%s: logical predicate has no clauses", at)
		}
		for i, c := range pred.Clauses {
			v.validate(c.Predicate, fmt.Sprintf("%s[%d]", at, i))
		}
	default:
		v.addProblem("%s: unknown predicate type %T", at, p)
	}
}

func (v *validator) checkField(field, at string) {
	if strings.TrimSpace(field) == "" {
		v.addProblem("%s: empty field name", at)
	}
}

// countWildcards counts '*' characters not preceded by an escaping backslash.
func countWildcards(pattern string) int {
	n := 0
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*':
			n++
		}
	}
	return n
}
