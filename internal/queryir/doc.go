// Package queryir provides an abstract query intermediate representation
// for filtering recorded task events.
//
// The trace command and the store never build SQL by hand for event
// lookups. They describe the rows they want as a Query, and the querysql
// package compiles it into a parameterized statement:
//
//	[--where flags] -> [Query IR] -> [SQL backend]
//
// FRAGMENT:
//
// The IR is deliberately small:
//   - Select(from, filter, limit) - access to the task event table
//   - Predicates: Equals, BoundEquals, And
//
// It excludes OR predicates, NULL comparisons, aggregation and joins
// across graphs. Every result set is ordered by the event sequence number
// with the task key as tiebreaker, so a query returns the same rows in the
// same order on every run.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method
// pattern. Only types in this package implement them, which lets backends
// switch exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	case *Select:
//	    // Handle select by pointer
//	}
//
// FIELDS:
//
// Predicates name event fields, not columns. Fields lists them with the
// literal type each accepts; Validate rejects anything else before a
// backend sees it.
//
// VALUES:
//
// Literal values are ir.IRValue (no floats), the same constrained value
// set used for task keys and dataset fingerprints.
package queryir
