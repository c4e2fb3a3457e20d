package query

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/schema"
)

// stubParser returns a fixed predicate and overrides for any text.
type stubParser struct {
	pred      predicate.Predicate
	overrides Overrides
	err       error
	got       string
}

func (s *stubParser) Parse(text string) (predicate.Predicate, Overrides, error) {
	s.got = text
	return s.pred, s.overrides, s.err
}

func intp(n int) *int    { return &n }
func boolp(b bool) *bool { return &b }

var (
	bob   = predicate.Term{Field: "Name", Value: predicate.String("Bob")}
	adult = predicate.Range{Field: "Age", Min: predicate.Int(18)}
)

func newTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.AddField(schema.Field{Name: "Age", Type: schema.DataTypeInt}))
	return reg
}

func newTestAssembler(t *testing.T, cfg Config) *Assembler {
	t.Helper()
	reg := newTestRegistry(t)
	if cfg.Compiler == nil {
		cfg.Compiler = compiler.New(reg, reg)
	}
	if cfg.Paths == nil {
		cfg.Paths = FieldPathScope{Fields: reg}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewAssembler(cfg)
}

func TestAssemble_EmptyQueryMatchesNothing(t *testing.T) {
	a := newTestAssembler(t, Config{})

	q, err := a.Assemble(nil, compiler.Directives{}, PathContext{}, "")

	require.NoError(t, err)
	assert.True(t, predicate.IsNone(q.Predicate))
}

func TestAssemble_PathScope(t *testing.T) {
	tests := []struct {
		name  string
		usage PathUsage
		want  predicate.Predicate
	}{
		{
			name:  "in folder and",
			usage: PathInFolderAnd,
			want:  predicate.And(bob, predicate.Term{Field: "InFolder", Value: predicate.String("/root/docs")}),
		},
		{
			name:  "in tree and",
			usage: PathInTreeAnd,
			want:  predicate.And(bob, predicate.Term{Field: "InTree", Value: predicate.String("/root/docs")}),
		},
		{
			name:  "in tree or",
			usage: PathInTreeOr,
			want:  predicate.Or(bob, predicate.Term{Field: "InTree", Value: predicate.String("/root/docs")}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAssembler(t, Config{})
			q, err := a.Assemble(bob, compiler.Directives{}, PathContext{Path: "/Root/Docs", Usage: tc.usage}, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, q.Predicate)
		})
	}
}

func TestAssemble_PathOnly(t *testing.T) {
	a := newTestAssembler(t, Config{})

	q, err := a.Assemble(nil, compiler.Directives{}, PathContext{Path: "/Root", Usage: PathInTreeOr}, "")

	require.NoError(t, err)
	assert.Equal(t, predicate.Term{Field: "InTree", Value: predicate.String("/root")}, q.Predicate)
}

func TestAssemble_SupplementaryTextIsAnded(t *testing.T) {
	parser := &stubParser{pred: adult}
	a := newTestAssembler(t, Config{Parser: parser})

	q, err := a.Assemble(bob, compiler.Directives{}, PathContext{}, "Age:>=18")

	require.NoError(t, err)
	assert.Equal(t, "Age:>=18", parser.got)
	assert.Equal(t, predicate.And(bob, adult), q.Predicate)
}

func TestAssemble_TextThenPathFlatten(t *testing.T) {
	a := newTestAssembler(t, Config{Parser: &stubParser{pred: adult}})

	q, err := a.Assemble(bob, compiler.Directives{}, PathContext{Path: "/a", Usage: PathInFolderAnd}, "x")

	require.NoError(t, err)
	want := predicate.And(bob, adult, predicate.Term{Field: "InFolder", Value: predicate.String("/a")})
	assert.Equal(t, want, q.Predicate, "nested AND groups are spliced by the optimizer")
}

func TestAssemble_PureNegationGetsBaseSet(t *testing.T) {
	a := newTestAssembler(t, Config{})

	q, err := a.Assemble(predicate.Not(bob), compiler.Directives{}, PathContext{}, "")

	require.NoError(t, err)
	want := predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: bob, Occur: predicate.OccurMustNot},
		{Predicate: predicate.All(), Occur: predicate.OccurMust},
	}}
	assert.Equal(t, want, q.Predicate)
}

func TestAssemble_DirectiveLayering(t *testing.T) {
	first := compiler.SelectFirst
	parser := &stubParser{overrides: Overrides{Skip: intp(40)}}
	a := newTestAssembler(t, Config{
		Parser:   parser,
		Defaults: Overrides{Top: intp(1000), Skip: intp(0), CountOnly: boolp(false)},
		Settings: Overrides{Top: intp(25), Skip: intp(10), ElementSelection: &first},
	})

	fromExpr := compiler.Directives{
		Top:  intp(5),
		Skip: 3,
		Sort: []compiler.SortField{{Field: "Age"}},
	}

	q, err := a.Assemble(bob, fromExpr, PathContext{}, ".SKIP:40")
	require.NoError(t, err)

	require.NotNil(t, q.Top)
	assert.Equal(t, 25, *q.Top, "settings beat the expression")
	assert.Equal(t, 40, q.Skip, "text beats settings")
	assert.Equal(t, []compiler.SortField{{Field: "Age"}}, q.Sort, "expression beats defaults")
	assert.Equal(t, compiler.SelectFirst, q.ElementSelection)
	assert.False(t, q.CountOnly)
}

func TestAssemble_DefaultsApplyWhenNothingElseSets(t *testing.T) {
	a := newTestAssembler(t, Config{Defaults: Overrides{Top: intp(100)}})

	q, err := a.Assemble(bob, compiler.Directives{}, PathContext{}, "")

	require.NoError(t, err)
	require.NotNil(t, q.Top)
	assert.Equal(t, 100, *q.Top)
}

func TestAssemble_Errors(t *testing.T) {
	t.Run("text without parser", func(t *testing.T) {
		a := newTestAssembler(t, Config{})
		_, err := a.Assemble(bob, compiler.Directives{}, PathContext{}, "Name:Bob")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no parser")
	})

	t.Run("parser failure", func(t *testing.T) {
		boom := errors.New("boom")
		a := newTestAssembler(t, Config{Parser: &stubParser{err: boom}})
		_, err := a.Assemble(bob, compiler.Directives{}, PathContext{}, "(")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty scope path", func(t *testing.T) {
		a := newTestAssembler(t, Config{})
		_, err := a.Assemble(bob, compiler.Directives{}, PathContext{Usage: PathInTreeAnd}, "")
		require.Error(t, err)
	})

	t.Run("invalid predicate", func(t *testing.T) {
		a := newTestAssembler(t, Config{})
		_, err := a.Assemble(predicate.Range{Field: "Age"}, compiler.Directives{}, PathContext{}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unbounded")
	})
}

func TestCompile_EndToEnd(t *testing.T) {
	var logs bytes.Buffer
	a := newTestAssembler(t, Config{
		IDs:    NewFixedGenerator("compile-1"),
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	q, err := a.Compile(
		expr.From().Where(func(x *expr.Parameter) expr.Node {
			return expr.Not(expr.Not(expr.Eq(expr.Field(x, "Age"), 3)))
		}).Take(2).Node(),
		nil,
		PathContext{},
		"",
	)
	require.NoError(t, err)

	want := predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: predicate.Term{Field: "Age", Value: predicate.Int(3)}, Occur: predicate.OccurMust},
	}}
	assert.Equal(t, want, q.Predicate, "double negation is spliced away")
	assert.Equal(t, "compile-1", q.ID)
	require.NotNil(t, q.Top)
	assert.Equal(t, 2, *q.Top)

	assert.Contains(t, logs.String(), "compile_id=compile-1")
	assert.Contains(t, logs.String(), "top=2")
}

func TestCompile_PropagatesCompileErrors(t *testing.T) {
	a := newTestAssembler(t, Config{})

	_, err := a.Compile(expr.From().Take(expr.Param("n")).Node(), nil, PathContext{}, "")

	assert.True(t, compiler.IsNonConstant(err))
}
