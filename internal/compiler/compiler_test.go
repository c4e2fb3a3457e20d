package compiler

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/schema"
)

type Document struct{}
type Folder struct{}
type unmapped struct{}

type contentNode struct{ id int64 }

func (n contentNode) ContentID() int64 { return n.id }

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.AddField(schema.Field{Name: "Age", Type: schema.DataTypeInt}))
	require.NoError(t, reg.AddField(schema.Field{Name: "IsActive", Type: schema.DataTypeBool}))
	require.NoError(t, reg.AddField(schema.Field{Name: "IsHidden", Type: schema.DataTypeBool}))
	require.NoError(t, reg.AddField(schema.Field{Name: "Title", Type: schema.DataTypeString, CaseInsensitive: true}))
	require.NoError(t, reg.AddField(schema.Field{Name: "Members", Type: schema.DataTypeReference}))
	require.NoError(t, reg.BindType(reflect.TypeOf((*Document)(nil)).Elem(), "Document"))
	require.NoError(t, reg.BindType(reflect.TypeOf((*Folder)(nil)).Elem(), "Folder"))
	return New(reg, reg)
}

func age(x *expr.Parameter) *expr.Member      { return expr.Field(x, "Age") }
func name(x *expr.Parameter) *expr.Member     { return expr.Field(x, "Name") }
func isActive(x *expr.Parameter) *expr.Member { return expr.Field(x, "IsActive") }

func compile(t *testing.T, q expr.Query) (predicate.Predicate, Directives) {
	t.Helper()
	p, d, err := newTestCompiler(t).Compile(q.Node(), nil)
	require.NoError(t, err)
	return p, d
}

// End-to-end scenarios over Age:Int, Name:String, IsActive:Bool.

func TestCompile_RangeAndTerm(t *testing.T) {
	p, d := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
		return expr.And(expr.Gt(age(x), 18), expr.Eq(name(x), "Bob"))
	}))

	want := predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: predicate.Range{Field: "Age", Min: predicate.Int(18), ExcludeMin: true}, Occur: predicate.OccurMust},
		{Predicate: predicate.Term{Field: "Name", Value: predicate.String("Bob")}, Occur: predicate.OccurMust},
	}}
	assert.Equal(t, want, p)
	assert.Equal(t, Directives{}, d)
}

func TestCompile_NegatedBooleanMemberFlips(t *testing.T) {
	p, _ := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
		return expr.Not(isActive(x))
	}))

	assert.Equal(t, predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}, p)
}

func TestCompile_StartsWithAndTake(t *testing.T) {
	p, d := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
		return expr.StartsWith(name(x), "Al")
	}).Take(5))

	assert.Equal(t, predicate.Wildcard{Field: "Name", Pattern: "Al*"}, p)
	require.NotNil(t, d.Top)
	assert.Equal(t, 5, *d.Top)
}

func TestCompile_AnyWithInlinePredicate(t *testing.T) {
	p, d := compile(t, expr.From().Any(func(x *expr.Parameter) expr.Node {
		return expr.Gt(age(x), 65)
	}))

	assert.Equal(t, predicate.Range{Field: "Age", Min: predicate.Int(65), ExcludeMin: true}, p)
	assert.True(t, d.CountOnly)
	assert.True(t, d.ExistenceOnly)
	require.NotNil(t, d.Top)
	assert.Equal(t, 1, *d.Top)
}

func TestCompile_OfTypeOrderByDescending(t *testing.T) {
	p, d := compile(t, expr.From().
		OfType(reflect.TypeOf((*Document)(nil)).Elem()).
		OrderByDescending(func(x *expr.Parameter) expr.Node { return name(x) }))

	assert.Equal(t, predicate.Term{Field: "TypeIs", Value: predicate.String("document")}, p)
	assert.Equal(t, []SortField{{Field: "Name", Reverse: true}}, d.Sort)
}

func TestCompile_ChainedWheresAreNotMerged(t *testing.T) {
	p, _ := compile(t, expr.From().
		Where(func(x *expr.Parameter) expr.Node { return expr.Gt(age(x), 10) }).
		Where(func(x *expr.Parameter) expr.Node { return expr.Lt(age(x), 5) }))

	want := predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: predicate.Range{Field: "Age", Min: predicate.Int(10), ExcludeMin: true}, Occur: predicate.OccurMust},
		{Predicate: predicate.Range{Field: "Age", Max: predicate.Int(5), ExcludeMax: true}, Occur: predicate.OccurMust},
	}}
	assert.Equal(t, want, predicate.Optimize(p))
}

func TestCompile_Comparisons(t *testing.T) {
	tests := []struct {
		name string
		body func(x *expr.Parameter) expr.Node
		want predicate.Predicate
	}{
		{
			name: "constant on the left is mirrored",
			body: func(x *expr.Parameter) expr.Node { return expr.Lt(18, age(x)) },
			want: predicate.Range{Field: "Age", Min: predicate.Int(18), ExcludeMin: true},
		},
		{
			name: "less or equal is inclusive",
			body: func(x *expr.Parameter) expr.Node { return expr.Le(age(x), 30) },
			want: predicate.Range{Field: "Age", Max: predicate.Int(30)},
		},
		{
			name: "greater or equal is inclusive",
			body: func(x *expr.Parameter) expr.Node { return expr.Ge(age(x), 30) },
			want: predicate.Range{Field: "Age", Min: predicate.Int(30)},
		},
		{
			name: "not equal wraps in must not",
			body: func(x *expr.Parameter) expr.Node { return expr.Ne(name(x), "Bob") },
			want: predicate.Not(predicate.Term{Field: "Name", Value: predicate.String("Bob")}),
		},
		{
			name: "values are normalized by the field converter",
			body: func(x *expr.Parameter) expr.Node { return expr.Eq(expr.Field(x, "Title"), "Hello") },
			want: predicate.Term{Field: "Title", Value: predicate.String("hello")},
		},
		{
			name: "null equality",
			body: func(x *expr.Parameter) expr.Node { return expr.Eq(name(x), nil) },
			want: predicate.Term{Field: "Name", Value: predicate.Null{}},
		},
		{
			name: "boolean comparison against false",
			body: func(x *expr.Parameter) expr.Node { return expr.Eq(isActive(x), false) },
			want: predicate.Term{Field: "IsActive", Value: predicate.Bool(false)},
		},
		{
			name: "boolean not equal true",
			body: func(x *expr.Parameter) expr.Node { return expr.Ne(isActive(x), true) },
			want: predicate.Term{Field: "IsActive", Value: predicate.Bool(false)},
		},
		{
			name: "dynamic indexer",
			body: func(x *expr.Parameter) expr.Node { return expr.Eq(expr.Item(x, "Age"), 3) },
			want: predicate.Term{Field: "Age", Value: predicate.Int(3)},
		},
		{
			name: "field through content handler",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Eq(expr.Field(expr.Field(x, HandlerMember), "Age"), 3)
			},
			want: predicate.Term{Field: "Age", Value: predicate.Int(3)},
		},
		{
			name: "reference equality uses the content id",
			body: func(x *expr.Parameter) expr.Node { return expr.Eq(expr.Field(x, "Members"), contentNode{id: 9}) },
			want: predicate.Term{Field: "Members", Value: predicate.Int(9)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := compile(t, expr.From().Where(tc.body))
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestCompile_StringMatching(t *testing.T) {
	tests := []struct {
		name string
		body func(x *expr.Parameter) expr.Node
		want predicate.Predicate
	}{
		{
			name: "ends with",
			body: func(x *expr.Parameter) expr.Node { return expr.EndsWith(name(x), "ce") },
			want: predicate.Wildcard{Field: "Name", Pattern: "*ce"},
		},
		{
			name: "contains",
			body: func(x *expr.Parameter) expr.Node { return expr.Contains(name(x), "li") },
			want: predicate.Wildcard{Field: "Name", Pattern: "*li*"},
		},
		{
			name: "pattern characters are escaped",
			body: func(x *expr.Parameter) expr.Node { return expr.StartsWith(name(x), "a*b") },
			want: predicate.Wildcard{Field: "Name", Pattern: `a\*b*`},
		},
		{
			name: "odata startswith",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Invoke(expr.CallODataStartsWith, nil, name(x), "Al")
			},
			want: predicate.Wildcard{Field: "Name", Pattern: "Al*"},
		},
		{
			name: "odata substringof takes the field second",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Invoke(expr.CallODataSubstringOf, nil, "li", name(x))
			},
			want: predicate.Wildcard{Field: "Name", Pattern: "*li*"},
		},
		{
			name: "canonical call eq true is the call itself",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Eq(expr.Invoke(expr.CallODataEndsWith, nil, name(x), "ce"), true)
			},
			want: predicate.Wildcard{Field: "Name", Pattern: "*ce"},
		},
		{
			name: "canonical call eq false negates",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Eq(expr.Invoke(expr.CallODataEndsWith, nil, name(x), "ce"), false)
			},
			want: predicate.Not(predicate.Wildcard{Field: "Name", Pattern: "*ce"}),
		},
		{
			name: "contains on a reference field is a term",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Contains(expr.Field(x, "Members"), contentNode{id: 4})
			},
			want: predicate.Term{Field: "Members", Value: predicate.Int(4)},
		},
		{
			name: "list contains field is a disjunction",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Contains(expr.Value([]int{1, 2}), age(x))
			},
			want: predicate.Or(
				predicate.Term{Field: "Age", Value: predicate.Int(1)},
				predicate.Term{Field: "Age", Value: predicate.Int(2)},
			),
		},
		{
			name: "empty list contains nothing",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Contains(expr.Value([]int{}), age(x))
			},
			want: predicate.None(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := compile(t, expr.From().Where(tc.body))
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestCompile_TypePredicates(t *testing.T) {
	docTerm := predicate.Term{Field: "TypeIs", Value: predicate.String("document")}

	tests := []struct {
		name string
		body func(x *expr.Parameter) expr.Node
		want predicate.Predicate
	}{
		{
			name: "is",
			body: func(x *expr.Parameter) expr.Node { return expr.Is(x, reflect.TypeOf((*Document)(nil)).Elem()) },
			want: docTerm,
		},
		{
			name: "Type by name is exact",
			body: func(x *expr.Parameter) expr.Node { return expr.Invoke(expr.CallType, x, "Folder") },
			want: predicate.Term{Field: "Type", Value: predicate.String("folder")},
		},
		{
			name: "TypeIs by name",
			body: func(x *expr.Parameter) expr.Node { return expr.Invoke(expr.CallTypeIs, nil, "Document") },
			want: docTerm,
		},
		{
			name: "GetType then IsAssignableFrom",
			body: func(x *expr.Parameter) expr.Node {
				return expr.IsAssignableFrom(reflect.TypeOf((*Document)(nil)).Elem(), expr.GetType(expr.Field(x, HandlerMember)))
			},
			want: docTerm,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := compile(t, expr.From().Where(tc.body))
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestCompile_ElementTypeAddsTypeTerm(t *testing.T) {
	q := expr.From().Where(func(x *expr.Parameter) expr.Node { return expr.Gt(age(x), 1) })

	p, _, err := newTestCompiler(t).Compile(q.Node(), reflect.TypeOf((**Folder)(nil)).Elem())
	require.NoError(t, err)

	want := predicate.And(
		predicate.Term{Field: "TypeIs", Value: predicate.String("folder")},
		predicate.Range{Field: "Age", Min: predicate.Int(1), ExcludeMin: true},
	)
	assert.Equal(t, want, p)
}

func TestCompile_EmptyExpression(t *testing.T) {
	p, d := compile(t, expr.From().Skip(3))

	assert.Nil(t, p)
	assert.Equal(t, 3, d.Skip)
}

func TestCompile_ConstantConditions(t *testing.T) {
	p, _ := compile(t, expr.From().Where(func(*expr.Parameter) expr.Node { return expr.Value(true) }))
	assert.Equal(t, predicate.All(), p)

	p, _ = compile(t, expr.From().Where(func(*expr.Parameter) expr.Node { return expr.Eq(1, 2) }))
	assert.True(t, predicate.IsNone(p))
}

func TestCompile_FoldsOuterVariables(t *testing.T) {
	minAge := 21
	pageSize := 10

	p, d := compile(t, expr.From().
		Where(func(x *expr.Parameter) expr.Node { return expr.Ge(age(x), expr.Add(minAge, 1)) }).
		Take(expr.Mul(pageSize, 2)))

	assert.Equal(t, predicate.Range{Field: "Age", Min: predicate.Int(22)}, p)
	require.NotNil(t, d.Top)
	assert.Equal(t, 20, *d.Top)
}

func TestCompile_Conditional(t *testing.T) {
	t.Run("constant test keeps live branch", func(t *testing.T) {
		admin := false
		p, _ := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
			return expr.If(expr.Value(admin), expr.Gt(age(x), 1), expr.Eq(name(x), "a"))
		}))
		assert.Equal(t, predicate.Term{Field: "Name", Value: predicate.String("a")}, p)
	})

	t.Run("field test is rewritten", func(t *testing.T) {
		p, _ := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
			return expr.If(isActive(x), expr.Gt(age(x), 1), expr.Eq(name(x), "a"))
		}))

		active := predicate.Term{Field: "IsActive", Value: predicate.Bool(true)}
		inactive := predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}
		want := predicate.Or(
			predicate.And(active, predicate.Range{Field: "Age", Min: predicate.Int(1), ExcludeMin: true}),
			predicate.And(inactive, predicate.Term{Field: "Name", Value: predicate.String("a")}),
		)
		assert.Equal(t, want, p)
	})
}

func TestCompile_BooleanMemberDeduplication(t *testing.T) {
	flag := predicate.Term{Field: "IsActive", Value: predicate.Bool(true)}

	tests := []struct {
		name string
		body func(x *expr.Parameter) expr.Node
		want predicate.Predicate
	}{
		{
			name: "same member twice collapses",
			body: func(x *expr.Parameter) expr.Node { return expr.And(isActive(x), isActive(x)) },
			want: flag,
		},
		{
			name: "comparison and implicit with equal values collapse",
			body: func(x *expr.Parameter) expr.Node { return expr.And(expr.Eq(isActive(x), true), isActive(x)) },
			want: flag,
		},
		{
			name: "different origins with conflicting values are kept",
			body: func(x *expr.Parameter) expr.Node { return expr.And(expr.Eq(isActive(x), false), isActive(x)) },
			want: predicate.And(predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}, flag),
		},
		{
			name: "same origin with conflicting values are kept",
			body: func(x *expr.Parameter) expr.Node {
				return expr.And(expr.Eq(isActive(x), true), expr.Eq(isActive(x), false))
			},
			want: predicate.And(flag, predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}),
		},
		{
			name: "conflicting values under or are kept",
			body: func(x *expr.Parameter) expr.Node {
				return expr.Or(expr.Eq(isActive(x), true), expr.Eq(isActive(x), false))
			},
			want: predicate.Or(flag, predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}),
		},
		{
			name: "equal values under or collapse",
			body: func(x *expr.Parameter) expr.Node { return expr.Or(isActive(x), expr.Eq(isActive(x), true)) },
			want: flag,
		},
		{
			name: "negated member is never collapsed",
			body: func(x *expr.Parameter) expr.Node { return expr.Or(expr.Not(isActive(x)), isActive(x)) },
			want: predicate.Or(predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}, flag),
		},
		{
			name: "different fields are kept",
			body: func(x *expr.Parameter) expr.Node { return expr.And(isActive(x), expr.Field(x, "IsHidden")) },
			want: predicate.And(flag, predicate.Term{Field: "IsHidden", Value: predicate.Bool(true)}),
		},
		{
			name: "only adjacent members are compared",
			body: func(x *expr.Parameter) expr.Node {
				return expr.And(expr.And(isActive(x), expr.Gt(age(x), 1)), isActive(x))
			},
			want: predicate.And(
				predicate.And(flag, predicate.Range{Field: "Age", Min: predicate.Int(1), ExcludeMin: true}),
				flag,
			),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := compile(t, expr.From().Where(tc.body))
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestCompile_NotOfCompound(t *testing.T) {
	p, _ := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
		return expr.Not(expr.Gt(age(x), 1))
	}))

	assert.Equal(t, predicate.Not(predicate.Range{Field: "Age", Min: predicate.Int(1), ExcludeMin: true}), p)
}

func TestCompile_ConvertedIndexerIsBooleanMember(t *testing.T) {
	p, _ := compile(t, expr.From().Where(func(x *expr.Parameter) expr.Node {
		return expr.Not(expr.Convert(expr.Item(x, "IsActive"), reflect.TypeOf((*bool)(nil)).Elem()))
	}))

	assert.Equal(t, predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}, p)
}

func TestCompile_Directives(t *testing.T) {
	where := func(x *expr.Parameter) expr.Node { return expr.Gt(age(x), 1) }

	tests := []struct {
		name string
		q    expr.Query
		want Directives
	}{
		{"count", expr.From().Count(), Directives{CountOnly: true}},
		{"long count", expr.From().LongCount(where), Directives{CountOnly: true}},
		{"first", expr.From().First(), Directives{ElementSelection: SelectFirst, Top: IntPtr(1), ThrowIfEmpty: true}},
		{"first or default", expr.From().FirstOrDefault(), Directives{ElementSelection: SelectFirst, Top: IntPtr(1)}},
		{"single", expr.From().Single(), Directives{ElementSelection: SelectSingle, Top: IntPtr(2), ThrowIfEmpty: true}},
		{"single or default", expr.From().SingleOrDefault(where), Directives{ElementSelection: SelectSingle, Top: IntPtr(2)}},
		{"last", expr.From().Last(), Directives{ElementSelection: SelectLast, ThrowIfEmpty: true}},
		{"last or default", expr.From().LastOrDefault(), Directives{ElementSelection: SelectLast}},
		{"element at", expr.From().Skip(2).ElementAt(3), Directives{ElementSelection: SelectElementAt, Skip: 5, Top: IntPtr(1), ThrowIfEmpty: true}},
		{"element at or default", expr.From().ElementAtOrDefault(0), Directives{ElementSelection: SelectElementAt, Top: IntPtr(1)}},
		{"take keeps the smaller limit", expr.From().Take(10).Take(3).Take(7), Directives{Top: IntPtr(3)}},
		{"skips add up", expr.From().Skip(2).Skip(3), Directives{Skip: 5}},
		{
			"sort keys in order",
			expr.From().
				OrderBy(func(x *expr.Parameter) expr.Node { return age(x) }).
				ThenByDescending(func(x *expr.Parameter) expr.Node { return expr.Item(x, "Title") }),
			Directives{Sort: []SortField{{Field: "Age"}, {Field: "Title", Reverse: true}}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, d := compile(t, tc.q)
			assert.Equal(t, tc.want, d)
		})
	}
}

func TestCompile_InlinePredicateKeepsConflictingMembers(t *testing.T) {
	p, d := compile(t, expr.From().
		Where(func(x *expr.Parameter) expr.Node { return expr.Eq(isActive(x), false) }).
		Any(func(x *expr.Parameter) expr.Node { return expr.Eq(isActive(x), true) }))

	want := predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: predicate.Term{Field: "IsActive", Value: predicate.Bool(false)}, Occur: predicate.OccurMust},
		{Predicate: predicate.Term{Field: "IsActive", Value: predicate.Bool(true)}, Occur: predicate.OccurMust},
	}}
	assert.Equal(t, want, p)
	assert.Equal(t, Directives{CountOnly: true, ExistenceOnly: true, Top: IntPtr(1)}, d)
}

func TestCompile_InlinePredicateJoinsPreviousFragment(t *testing.T) {
	p, d := compile(t, expr.From().
		Where(func(x *expr.Parameter) expr.Node { return expr.Gt(age(x), 1) }).
		First(func(x *expr.Parameter) expr.Node { return expr.Eq(name(x), "a") }))

	want := predicate.And(
		predicate.Range{Field: "Age", Min: predicate.Int(1), ExcludeMin: true},
		predicate.Term{Field: "Name", Value: predicate.String("a")},
	)
	assert.Equal(t, want, p)
	assert.Equal(t, SelectFirst, d.ElementSelection)
}
