package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/geochunk/internal/ir"
)

// ParseFilter turns "field=value" expressions into a conjunction of
// Equals predicates. Integer fields parse their value as a base-10 int.
// An empty list yields an empty And.
func ParseFilter(exprs []string) (And, error) {
	and := And{Predicates: make([]Predicate, 0, len(exprs))}
	for _, expr := range exprs {
		field, value, ok := strings.Cut(expr, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return And{}, fmt.Errorf("filter %q: want field=value", expr)
		}
		typ, known := Fields[field]
		if !known {
			return And{}, fmt.Errorf("filter %q: unknown field %q", expr, field)
		}
		value = strings.TrimSpace(value)
		eq := Equals{Field: field, Value: ir.IRString(value)}
		if typ == TypeInt {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return And{}, fmt.Errorf("filter %q: %s wants an integer", expr, field)
			}
			eq.Value = ir.IRInt(n)
		}
		and.Predicates = append(and.Predicates, eq)
	}
	return and, nil
}
