// Package query assembles compiled expressions into executable queries.
//
// The Assembler joins the compiled predicate with an optional supplementary
// query text and a path scope, never leaves a query unconstrained, runs the
// boolean optimizer, and layers directives in ascending priority:
//
//	defaults → expression → caller settings → supplementary text
//
// Each directive field takes the value of the highest layer that sets it.
package query

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/predicate"
)

// TextParser parses supplementary raw query text into a predicate and the
// directives the text sets. The predicate is nil when the text only carries
// directives.
type TextParser interface {
	Parse(text string) (predicate.Predicate, Overrides, error)
}

// Config configures an Assembler.
type Config struct {
	// Compiler lowers expressions. Required by Compile only.
	Compiler *compiler.Compiler

	// Paths builds path scope predicates. Required when a PathContext is used.
	Paths PathScopeProvider

	// Parser parses supplementary text. Required when text is supplied.
	Parser TextParser

	// Defaults is the lowest-priority directive layer.
	Defaults Overrides

	// Settings are directives explicitly set by the calling configuration.
	Settings Overrides

	// IDs generates compile IDs. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Assembler produces CompiledQuery values. It holds no per-query state and
// is safe for concurrent use when its collaborators are.
type Assembler struct {
	cfg    Config
	logger *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg Config) *Assembler {
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{cfg: cfg, logger: logger}
}

// Compile runs the whole pipeline: lower n, then assemble the result.
func (a *Assembler) Compile(n expr.Node, elementType reflect.Type, path PathContext, text string) (CompiledQuery, error) {
	if a.cfg.Compiler == nil {
		return CompiledQuery{}, fmt.Errorf("assembler has no compiler")
	}
	p, d, err := a.cfg.Compiler.Compile(n, elementType)
	if err != nil {
		return CompiledQuery{}, err
	}
	return a.Assemble(p, d, path, text)
}

// Assemble turns a compiled predicate and its directives into a query.
// p may be nil when the expression constrained nothing.
func (a *Assembler) Assemble(p predicate.Predicate, d compiler.Directives, path PathContext, text string) (CompiledQuery, error) {
	var textOverrides Overrides
	if strings.TrimSpace(text) != "" {
		if a.cfg.Parser == nil {
			return CompiledQuery{}, fmt.Errorf("supplementary query text given but no parser configured")
		}
		tp, o, err := a.cfg.Parser.Parse(text)
		if err != nil {
			return CompiledQuery{}, fmt.Errorf("parse query text: %w", err)
		}
		p = join(p, tp, predicate.OccurMust)
		textOverrides = o
	}

	if path.Usage != PathNotUsed {
		if a.cfg.Paths == nil {
			return CompiledQuery{}, fmt.Errorf("path scope %s given but no path provider configured", path.Usage)
		}
		scope, err := a.cfg.Paths.PathPredicate(path.Path, path.Usage.Recursive())
		if err != nil {
			return CompiledQuery{}, fmt.Errorf("path scope: %w", err)
		}
		occ := predicate.OccurMust
		if path.Usage.Disjunctive() {
			occ = predicate.OccurShould
		}
		p = join(p, scope, occ)
	}

	if p == nil {
		p = predicate.None()
	}
	p = predicate.Optimize(p)

	if res := predicate.Validate(p); !res.Valid {
		return CompiledQuery{}, fmt.Errorf("assembled predicate is invalid: %s", strings.Join(res.Problems, "; "))
	}

	q := CompiledQuery{
		ID:         a.cfg.IDs.Generate(),
		Predicate:  p,
		Directives: Layer(a.cfg.Defaults, fromDirectives(d), a.cfg.Settings, textOverrides),
	}

	a.logger.Debug("query assembled",
		"compile_id", q.ID,
		"clauses", predicate.ClauseCount(q.Predicate),
		"empty", predicate.IsNone(q.Predicate),
		"top", topString(q.Top),
		"skip", q.Skip,
		"sort_keys", len(q.Sort),
		"count_only", q.CountOnly,
		"existence_only", q.ExistenceOnly,
		"element_selection", q.ElementSelection.String(),
		"path_usage", path.Usage.String(),
	)
	return q, nil
}

// join combines two optional predicates with occ.
func join(a, b predicate.Predicate, occ predicate.Occurrence) predicate.Predicate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return predicate.Logical{Clauses: []predicate.Clause{
		{Predicate: a, Occur: occ},
		{Predicate: b, Occur: occ},
	}}
}

func topString(top *int) string {
	if top == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d", *top)
}
