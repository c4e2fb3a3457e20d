package predicate

// IDField is the field holding the numeric content identifier.
// Identifiers start at 1, which the full-set and empty-result predicates rely on.
const IDField = "Id"

// Predicate represents a node in the compiled query algebra.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Occurrence says how a clause participates in a Logical combination.
type Occurrence int

const (
	// OccurDefault is an unspecified occurrence, treated as Must.
	OccurDefault Occurrence = iota
	// OccurMust marks a required clause.
	OccurMust
	// OccurShould marks an optional (disjunctive) clause.
	OccurShould
	// OccurMustNot marks a forbidden clause.
	OccurMustNot
)

// String returns the lowercase occurrence name used in canonical JSON.
func (o Occurrence) String() string {
	switch o {
	case OccurMust:
		return "must"
	case OccurShould:
		return "should"
	case OccurMustNot:
		return "must_not"
	default:
		return "default"
	}
}

// Term matches documents whose field equals Value exactly.
//
// Example:
//
//	Term{Field: "Name", Value: String("Bob")}
type Term struct {
	Field string
	Value Value
}

func (Term) predicateNode() {}

// Range matches documents whose field lies in an interval.
// A nil bound is open on that side.
//
// Example (Age > 18):
//
//	Range{Field: "Age", Min: Int(18), ExcludeMin: true}
type Range struct {
	Field      string
	Min        Value // nil = unbounded below
	Max        Value // nil = unbounded above
	ExcludeMin bool
	ExcludeMax bool
}

func (Range) predicateNode() {}

// Wildcard matches documents whose field matches Pattern, where the
// unescaped '*' stands for any run of characters.
type Wildcard struct {
	Field   string
	Pattern string
}

func (Wildcard) predicateNode() {}

// Clause is one member of a Logical predicate.
type Clause struct {
	Predicate Predicate
	Occur     Occurrence
}

// Logical combines clauses. It always has at least one clause.
type Logical struct {
	Clauses []Clause
}

func (Logical) predicateNode() {}

// And combines predicates with Must occurrence.
func And(preds ...Predicate) Logical {
	return combine(OccurMust, preds)
}

// Or combines predicates with Should occurrence.
func Or(preds ...Predicate) Logical {
	return combine(OccurShould, preds)
}

// Not wraps a predicate in a single MustNot clause.
func Not(p Predicate) Logical {
	return Logical{Clauses: []Clause{{Predicate: p, Occur: OccurMustNot}}}
}

func combine(occ Occurrence, preds []Predicate) Logical {
	clauses := make([]Clause, 0, len(preds))
	for _, p := range preds {
		clauses = append(clauses, Clause{Predicate: p, Occur: occ})
	}
	return Logical{Clauses: clauses}
}

// All returns the full-set predicate: every content item has a positive Id.
func All() Predicate {
	return Range{Field: IDField, Min: Int(0), ExcludeMin: true}
}

// None returns the empty-result sentinel. No content item has Id 0.
func None() Predicate {
	return Term{Field: IDField, Value: Int(0)}
}

// IsNone reports whether p is the empty-result sentinel.
func IsNone(p Predicate) bool {
	t, ok := p.(Term)
	if !ok || t.Field != IDField {
		return false
	}
	v, ok := t.Value.(Int)
	return ok && v == 0
}

// ClauseCount returns the number of leaves in the tree.
func ClauseCount(p Predicate) int {
	switch pred := p.(type) {
	case nil:
		return 0
	case Logical:
		n := 0
		for _, c := range pred.Clauses {
			n += ClauseCount(c.Predicate)
		}
		return n
	default:
		return 1
	}
}
