package expr

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	Tags []string
	meta map[string]any
}

func (p person) Greeting() string { return "hi " + p.Name }

type named interface{ Greeting() string }

func TestEval(t *testing.T) {
	bob := person{Name: "Bob", Tags: []string{"a", "b"}}

	tests := []struct {
		name string
		node Node
		want any
	}{
		{"int add", Add(2, 3), int64(5)},
		{"mixed float", Add(2, 0.5), 2.5},
		{"string concat", Add("ab", "cd"), "abcd"},
		{"compare ints of different kinds", Eq(int32(4), int64(4)), true},
		{"less", Lt(1, 2), true},
		{"string less", Lt("a", "b"), true},
		{"and short circuits", And(false, Func(func() bool { panic("evaluated") })), false},
		{"or", Or(false, true), true},
		{"not", Not(false), true},
		{"negate", &Unary{Op: UnaryNegate, Operand: Value(3)}, int64(-3)},
		{"convert", Convert(int64(7), reflect.TypeOf((*int32)(nil)).Elem()), int32(7)},
		{"member field", Field(Value(bob), "Name"), "Bob"},
		{"member method", Field(Value(bob), "Greeting"), "hi Bob"},
		{"member through pointer", Field(Value(&bob), "Name"), "Bob"},
		{"map member", Field(Value(map[string]int{"k": 1}), "k"), 1},
		{"index map", &Index{Owner: Value(map[string]int{"k": 2}), Key: Value("k")}, 2},
		{"index slice", &Index{Owner: Value([]string{"x", "y"}), Key: Value(1)}, "y"},
		{"conditional", If(true, "yes", "no"), "yes"},
		{"starts with", StartsWith("Alice", "Al"), true},
		{"ends with", EndsWith("Alice", "ce"), true},
		{"contains string", Contains("Alice", "lic"), true},
		{"contains slice", Contains(Value(bob.Tags), "b"), true},
		{"odata substringof", Invoke(CallODataSubstringOf, nil, "li", "Alice"), true},
		{"type test", Is(Value(bob), reflect.TypeOf((*named)(nil)).Elem()), true},
		{"get type", GetType(Value(bob)), reflect.TypeOf((*person)(nil)).Elem()},
		{"assignable", IsAssignableFrom(reflect.TypeOf((*named)(nil)).Elem(), GetType(Value(bob))), true},
		{"variadic func", Func(fmt.Sprint, "a", 1), "a1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(tc.node)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"parameter", Param("x")},
		{"source", &Source{}},
		{"query operator", Invoke(CallTake, &Source{}, 1)},
		{"division by zero", &Binary{Op: OpDivide, Left: Value(1), Right: Value(0)}},
		{"unexported field", Field(Value(person{}), "meta")},
		{"bad operands", Lt(true, 1)},
		{"not a function", Func(42)},
		{"arity", Func(func(int) int { return 0 })},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Eval(tc.node)
			require.Error(t, err)
		})
	}

	_, err := Eval(Param("x"))
	assert.True(t, errors.Is(err, ErrNotEvaluable))
}
