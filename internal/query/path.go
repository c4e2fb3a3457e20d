package query

import (
	"fmt"
	"strings"

	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/schema"
)

// PathUsage says whether and how a query is scoped to a content path.
type PathUsage int

const (
	PathNotUsed PathUsage = iota
	PathInFolderAnd
	PathInFolderOr
	PathInTreeAnd
	PathInTreeOr
)

var pathUsageNames = map[PathUsage]string{
	PathNotUsed:     "not_used",
	PathInFolderAnd: "in_folder_and",
	PathInFolderOr:  "in_folder_or",
	PathInTreeAnd:   "in_tree_and",
	PathInTreeOr:    "in_tree_or",
}

func (u PathUsage) String() string {
	if s, ok := pathUsageNames[u]; ok {
		return s
	}
	return fmt.Sprintf("PathUsage(%d)", int(u))
}

// ParsePathUsage parses a usage name such as "in_tree_and". Matching is
// case-insensitive and accepts '-' for '_'.
func ParsePathUsage(s string) (PathUsage, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if key == "" {
		return PathNotUsed, nil
	}
	for u, name := range pathUsageNames {
		if name == key {
			return u, nil
		}
	}
	return PathNotUsed, fmt.Errorf("invalid path usage %q", s)
}

// Recursive reports whether the scope covers the whole subtree.
func (u PathUsage) Recursive() bool {
	return u == PathInTreeAnd || u == PathInTreeOr
}

// Disjunctive reports whether the scope is OR-ed with the query.
func (u PathUsage) Disjunctive() bool {
	return u == PathInFolderOr || u == PathInTreeOr
}

// PathContext is the caller's path scope for one query.
type PathContext struct {
	Path  string
	Usage PathUsage
}

// PathScopeProvider builds the predicate restricting a query to a path.
type PathScopeProvider interface {
	PathPredicate(path string, recursive bool) (predicate.Predicate, error)
}

// FieldPathScope scopes queries with a term on the InFolder or InTree field,
// normalized by that field's converter.
type FieldPathScope struct {
	Fields schema.FieldResolver
}

// PathPredicate implements PathScopeProvider.
func (s FieldPathScope) PathPredicate(path string, recursive bool) (predicate.Predicate, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty scope path")
	}
	field := schema.FieldInFolder
	if recursive {
		field = schema.FieldInTree
	}
	_, conv, err := s.Fields.Resolve(field)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", field, err)
	}
	v, err := conv.Normalize(path)
	if err != nil {
		return nil, fmt.Errorf("normalize path: %w", err)
	}
	return predicate.Term{Field: field, Value: v}, nil
}
