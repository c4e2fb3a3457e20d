package compiler

import (
	"fmt"
	"strings"
)

// ElementSelection says which single element, if any, the caller wants.
type ElementSelection int

const (
	SelectNone ElementSelection = iota
	SelectFirst
	SelectSingle
	SelectLast
	SelectElementAt
)

func (s ElementSelection) String() string {
	switch s {
	case SelectNone:
		return "none"
	case SelectFirst:
		return "first"
	case SelectSingle:
		return "single"
	case SelectLast:
		return "last"
	case SelectElementAt:
		return "element_at"
	default:
		return fmt.Sprintf("ElementSelection(%d)", int(s))
	}
}

// ParseElementSelection resolves a selection name as printed by String.
func ParseElementSelection(name string) (ElementSelection, error) {
	for s := SelectNone; s <= SelectElementAt; s++ {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid element selection %q: must be one of none, first, single, last, element_at", name)
}

// SortField is one sort key. Reverse sorts descending.
type SortField struct {
	Field   string
	Reverse bool
}

// Directives are the non-boolean settings derived from an expression.
type Directives struct {
	// Top limits the number of results. Nil means unlimited.
	Top *int

	// Skip is the number of leading results to drop.
	Skip int

	// Sort lists sort keys in priority order.
	Sort []SortField

	// CountOnly asks for the result count instead of results.
	CountOnly bool

	// ExistenceOnly asks only whether any result exists.
	ExistenceOnly bool

	ElementSelection ElementSelection

	// ThrowIfEmpty makes element selection fail when nothing matches.
	ThrowIfEmpty bool
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// limitTop lowers Top to n. An unset Top becomes n.
func (d *Directives) limitTop(n int) {
	if d.Top == nil || n < *d.Top {
		d.Top = IntPtr(n)
	}
}
