package predicate

import "slices"

// Optimize flattens redundant boolean nesting and patches a root that only
// negates. It never merges leaves: two ranges on the same field stay two
// clauses even when they contradict each other.
//
// Optimize is pure and total. Optimize(Optimize(p)) equals Optimize(p).
func Optimize(p Predicate) Predicate {
	if p == nil {
		return nil
	}

	out := flatten(p)

	// A pure negation has no base set to subtract from.
	if l, ok := out.(Logical); ok && onlyNegations(l) {
		clauses := slices.Clone(l.Clauses)
		clauses = append(clauses, Clause{Predicate: All(), Occur: OccurMust})
		return Logical{Clauses: clauses}
	}
	return out
}

// flatten rebuilds a tree bottom-up, splicing nested groups into their parent.
func flatten(p Predicate) Predicate {
	l, ok := p.(Logical)
	if !ok {
		return p
	}

	clauses := make([]Clause, 0, len(l.Clauses))
	for _, c := range l.Clauses {
		c.Predicate = flatten(c.Predicate)
		clauses = appendClause(clauses, c)
	}
	return Logical{Clauses: clauses}
}

// appendClause appends c to dst, splicing c's predicate in place when it is a
// Logical whose clauses can take c's occurrence without changing meaning.
func appendClause(dst []Clause, c Clause) []Clause {
	inner, ok := c.Predicate.(Logical)
	if !ok {
		return append(dst, c)
	}
	spliced, ok := splice(c.Occur, inner)
	if !ok {
		return append(dst, c)
	}
	for _, s := range spliced {
		dst = appendClause(dst, s)
	}
	return dst
}

// splice returns inner's clauses rewritten for a parent clause with
// occurrence parent, or false when inner is not a plain group.
func splice(parent Occurrence, inner Logical) ([]Clause, bool) {
	if len(inner.Clauses) == 0 {
		return nil, false
	}

	if len(inner.Clauses) == 1 {
		c := inner.Clauses[0]
		occ, ok := spliceSingle(parent, c.Occur)
		if !ok {
			return nil, false
		}
		return []Clause{{Predicate: c.Predicate, Occur: occ}}, true
	}

	switch parent {
	case OccurDefault, OccurMust:
		// AND group: required and forbidden clauses keep their meaning.
		if hasOccurrence(inner, OccurShould) {
			return nil, false
		}
		return rewrite(inner, func(o Occurrence) Occurrence {
			if o == OccurMustNot {
				return OccurMustNot
			}
			return parent
		}), true
	case OccurShould:
		// OR group inside an OR.
		if !allOccurrences(inner, OccurShould) {
			return nil, false
		}
		return rewrite(inner, func(Occurrence) Occurrence { return OccurShould }), true
	case OccurMustNot:
		// NOT (a OR b) == NOT a AND NOT b
		if !allOccurrences(inner, OccurShould) {
			return nil, false
		}
		return rewrite(inner, func(Occurrence) Occurrence { return OccurMustNot }), true
	}
	return nil, false
}

// spliceSingle maps the occurrence of a group's only clause into its parent.
// A MustNot parent inverts Must and MustNot.
func spliceSingle(parent, child Occurrence) (Occurrence, bool) {
	switch parent {
	case OccurDefault, OccurMust:
		if child == OccurMustNot {
			return OccurMustNot, true
		}
		return parent, true
	case OccurShould:
		if child == OccurMustNot {
			return 0, false
		}
		return OccurShould, true
	case OccurMustNot:
		if child == OccurMustNot {
			return OccurMust, true
		}
		return OccurMustNot, true
	}
	return 0, false
}

func rewrite(inner Logical, occ func(Occurrence) Occurrence) []Clause {
	out := make([]Clause, len(inner.Clauses))
	for i, c := range inner.Clauses {
		out[i] = Clause{Predicate: c.Predicate, Occur: occ(c.Occur)}
	}
	return out
}

func hasOccurrence(l Logical, occ Occurrence) bool {
	for _, c := range l.Clauses {
		if c.Occur == occ {
			return true
		}
	}
	return false
}

func allOccurrences(l Logical, occ Occurrence) bool {
	for _, c := range l.Clauses {
		if c.Occur != occ {
			return false
		}
	}
	return true
}

// onlyNegations reports whether every clause of l is MustNot.
func onlyNegations(l Logical) bool {
	return len(l.Clauses) > 0 && allOccurrences(l, OccurMustNot)
}
