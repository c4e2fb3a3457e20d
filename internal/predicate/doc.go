// Package predicate provides the backend-neutral predicate tree produced by
// the content query compiler.
//
// The predicate tree is the contract between the compiler and the external
// search/index engine that executes queries:
//
//	[expression] → [compiler] → [Predicate tree + directives] → [index engine]
//
// PREDICATE ALGEBRA:
//
// The algebra is deliberately small and closed:
//   - Term(field, value) - exact match on a normalized value
//   - Range(field, min?, max?, excludeMin, excludeMax) - interval match
//   - Wildcard(field, pattern) - single prefix/suffix/infix wildcard
//   - Logical(clauses) - the only combinator
//
// Logical carries (Predicate, Occurrence) pairs. AND is "all clauses Must",
// OR is "all clauses Should" and NOT is a single MustNot clause. A clause
// with OccurDefault is treated as Must by the optimizer and the engine.
//
// SEALED INTERFACES:
//
// Predicate and Value are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so every consumer can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Term:
//	case Range:
//	case Wildcard:
//	case Logical:
//	}
//
// INVARIANTS:
//   - Every leaf holds a value already normalized by the field resolver.
//   - A Logical node always has at least one clause.
//   - Trees are immutable once built; Optimize returns a new tree.
//
// Validate reports violations of these invariants. Optimize performs the
// boolean peephole pass (nesting flattening and the pure-negation fix-up).
package predicate
