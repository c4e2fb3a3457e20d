package query

import (
	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/predicate"
)

// CompiledQuery is the final product handed to the execution engine.
type CompiledQuery struct {
	// ID tags the compilation in logs. It is not part of the query.
	ID string

	Predicate predicate.Predicate
	compiler.Directives
}

// ToMap converts q to a tree of maps and slices for canonical JSON.
// An unset Top is omitted.
func (q CompiledQuery) ToMap() (map[string]any, error) {
	pred, err := predicate.ToMap(q.Predicate)
	if err != nil {
		return nil, err
	}

	sort := make([]any, 0, len(q.Sort))
	for _, s := range q.Sort {
		sort = append(sort, map[string]any{"field": s.Field, "reverse": s.Reverse})
	}

	m := map[string]any{
		"predicate":         pred,
		"skip":              q.Skip,
		"sort":              sort,
		"count_only":        q.CountOnly,
		"existence_only":    q.ExistenceOnly,
		"element_selection": q.ElementSelection.String(),
		"throw_if_empty":    q.ThrowIfEmpty,
	}
	if q.Top != nil {
		m["top"] = *q.Top
	}
	return m, nil
}

// MarshalCanonical returns the canonical JSON encoding of q.
func (q CompiledQuery) MarshalCanonical() ([]byte, error) {
	m, err := q.ToMap()
	if err != nil {
		return nil, err
	}
	return predicate.MarshalCanonical(m)
}
