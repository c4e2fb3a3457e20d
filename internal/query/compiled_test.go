package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/predicate"
)

func TestCompiledQuery_MarshalCanonical(t *testing.T) {
	q := CompiledQuery{
		ID:        "ignored",
		Predicate: predicate.Wildcard{Field: "Name", Pattern: "Al*"},
		Directives: compiler.Directives{
			Top:  compiler.IntPtr(5),
			Sort: []compiler.SortField{{Field: "Name", Reverse: true}},
		},
	}

	data, err := q.MarshalCanonical()
	require.NoError(t, err)

	want := `{"count_only":false,"element_selection":"none","existence_only":false,` +
		`"predicate":{"wildcard":{"field":"Name","pattern":"Al*"}},` +
		`"skip":0,"sort":[{"field":"Name","reverse":true}],"throw_if_empty":false,"top":5}`
	assert.Equal(t, want, string(data))
}

func TestCompiledQuery_UnsetTopIsOmitted(t *testing.T) {
	q := CompiledQuery{Predicate: predicate.None()}

	m, err := q.ToMap()
	require.NoError(t, err)

	_, ok := m["top"]
	assert.False(t, ok)
	assert.Equal(t, []any{}, m["sort"])
}

func TestLayer(t *testing.T) {
	last := compiler.SelectLast
	d := Layer(
		Overrides{Top: intp(10), CountOnly: boolp(true)},
		Overrides{},
		Overrides{CountOnly: boolp(false), ElementSelection: &last, ThrowIfEmpty: boolp(true)},
	)

	require.NotNil(t, d.Top)
	assert.Equal(t, 10, *d.Top)
	assert.False(t, d.CountOnly, "a higher layer may switch a flag back off")
	assert.Equal(t, compiler.SelectLast, d.ElementSelection)
	assert.True(t, d.ThrowIfEmpty)
}

func TestLayer_SortIsReplacedNotMerged(t *testing.T) {
	d := Layer(
		Overrides{Sort: []compiler.SortField{{Field: "A"}, {Field: "B"}}},
		Overrides{Sort: []compiler.SortField{{Field: "C", Reverse: true}}},
	)

	assert.Equal(t, []compiler.SortField{{Field: "C", Reverse: true}}, d.Sort)
}

func TestFromDirectives_ZeroValuesAreUnset(t *testing.T) {
	o := fromDirectives(compiler.Directives{})
	assert.True(t, o.IsZero())

	o = fromDirectives(compiler.Directives{Skip: 2, ExistenceOnly: true})
	require.NotNil(t, o.Skip)
	assert.Equal(t, 2, *o.Skip)
	require.NotNil(t, o.ExistenceOnly)
	assert.Nil(t, o.Top)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
	assert.Equal(t, byte('7'), id[14], "version nibble")
}

func TestOverrides_Merge(t *testing.T) {
	base := Overrides{Top: intp(10), Skip: intp(2), Sort: []compiler.SortField{{Field: "A"}}}
	got := base.Merge(Overrides{Skip: intp(7), CountOnly: boolp(true)})

	assert.Equal(t, 10, *got.Top)
	assert.Equal(t, 7, *got.Skip)
	assert.Equal(t, []compiler.SortField{{Field: "A"}}, got.Sort)
	assert.True(t, *got.CountOnly)
	assert.Equal(t, 2, *base.Skip, "receiver is not modified")
}
