package queryir

import "github.com/roach88/geochunk/internal/ir"

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
// Predicate types:
//   - Equals: field = literal_value
//   - BoundEquals: field = bound_variable (supplied at compile time)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Events is the only source a Select may read.
const Events = "task_events"

// Select represents access to the task event table with filtering.
//
// Semantics:
//
//	SELECT <event columns> FROM <from> WHERE <filter> ORDER BY seq, task_key LIMIT <limit>
//
// Example:
//
//	Select{
//	  From: Events,
//	  Filter: And{Predicates: []Predicate{
//	    BoundEquals{Field: FieldGraphID, BoundVar: "graph"},
//	    Equals{Field: FieldKind, Value: ir.IRString("failed")},
//	  }},
//	}
type Select struct {
	From   string    // Must be Events
	Filter Predicate // WHERE conditions (nil = no filter)
	Limit  int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
//	Equals{Field: FieldTaskName, Value: ir.IRString("merge")}
//
// The value must match the field's type (see Fields).
type Equals struct {
	Field string     // Event field name
	Value ir.IRValue // Literal value (constrained to IRValue types)
}

func (Equals) predicateNode() {}

// BoundEquals compares a field with a variable bound when the query is
// compiled, typically the graph being inspected.
type BoundEquals struct {
	Field    string // Event field name
	BoundVar string // Variable name looked up by the backend
}

func (BoundEquals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate // All must be true (empty = always true)
}

func (And) predicateNode() {}

// Event fields a predicate may name.
const (
	FieldGraphID  = "graph_id"
	FieldSeq      = "seq"
	FieldKind     = "kind"
	FieldTaskKey  = "task_key"
	FieldTaskName = "task_name"
	FieldTaskSeq  = "task_seq"
)

// FieldType is the literal type a field compares against.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
)

// Fields maps each filterable event field to its literal type.
var Fields = map[string]FieldType{
	FieldGraphID:  TypeString,
	FieldSeq:      TypeInt,
	FieldKind:     TypeString,
	FieldTaskKey:  TypeString,
	FieldTaskName: TypeString,
	FieldTaskSeq:  TypeInt,
}

// Kinds lists the values the kind field can take.
var Kinds = []string{"delayed", "started", "completed", "failed"}
