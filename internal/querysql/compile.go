// Package querysql compiles queryir queries to parameterized SQLite SQL
// over the trace store schema.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/queryir"
)

// EventColumns is the column list every compiled query selects, in the
// order the store scans them.
const EventColumns = "e.graph_id, g.name, e.seq, e.kind, e.task_key, e.task_name, e.task_seq, e.deps, e.duration_ns, e.error"

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query ends in ORDER BY e.seq, e.task_key COLLATE BINARY so results
// are deterministic, and every value is a ? parameter, never interpolated.
type SQLCompiler struct {
	// BoundValues holds the values for BoundEquals predicates.
	BoundValues map[string]any
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		BoundValues: make(map[string]any),
	}
}

// Bind sets a bound variable and returns c.
func (c *SQLCompiler) Bind(name string, value any) *SQLCompiler {
	if c.BoundValues == nil {
		c.BoundValues = make(map[string]any)
	}
	c.BoundValues[name] = value
	return c
}

// Compile validates q and converts it to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(EventColumns)
	sb.WriteString(" FROM ")
	sb.WriteString(q.From)
	sb.WriteString(" e JOIN graphs g ON g.id = e.graph_id")

	var params []any
	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		params = filterParams
	}

	sb.WriteString(" ORDER BY e.seq ASC, e.task_key COLLATE BINARY ASC")
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	case queryir.BoundEquals:
		return c.compileBoundEquals(pred)
	case *queryir.BoundEquals:
		return c.compileBoundEquals(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return column(eq.Field) + " = ?", []any{param}, nil
}

// compileAnd joins the sub-predicates with AND. An empty And is "1 = 1".
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// compileBoundEquals looks the variable up in BoundValues. An unbound
// variable is an error: the query would otherwise run with a missing
// parameter.
func (c *SQLCompiler) compileBoundEquals(beq queryir.BoundEquals) (string, []any, error) {
	val, ok := c.BoundValues[beq.BoundVar]
	if !ok {
		return "", nil, fmt.Errorf("unbound variable %q", beq.BoundVar)
	}
	return column(beq.Field) + " = ?", []any{val}, nil
}

// column qualifies an event field with the events table alias. Field
// names are checked against queryir.Fields before this is reached.
func column(field string) string {
	return "e." + field
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
