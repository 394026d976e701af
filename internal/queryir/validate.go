package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/geochunk/internal/ir"
)

// ValidationError reports every problem found in one query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// Validate checks q against the fragment rules:
//  1. Select reads from Events
//  2. Predicates name known fields
//  3. Literals are non-null and match the field type
//  4. kind literals are known event kinds
//
// Returns nil when q is valid. Validate is a pure function.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.add("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.add("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From != Events {
		v.add("unknown source %q", sel.From)
	}
	if sel.Limit < 0 {
		v.add("limit must not be negative, got %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.add("nil predicate")
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case BoundEquals:
		v.validateField(pred.Field)
		if pred.BoundVar == "" {
			v.add("field %q: bound variable name is empty", pred.Field)
		}
	case *BoundEquals:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.add("unknown predicate type %T", p)
	}
}

func (v *validator) validateField(field string) (FieldType, bool) {
	typ, ok := Fields[field]
	if !ok {
		v.add("unknown field %q", field)
	}
	return typ, ok
}

func (v *validator) validateEquals(eq Equals) {
	typ, ok := v.validateField(eq.Field)
	if !ok {
		return
	}
	switch val := eq.Value.(type) {
	case nil, ir.IRNull:
		v.add("field %q compared to null", eq.Field)
	case ir.IRString:
		if typ != TypeString {
			v.add("field %q wants an integer, got %q", eq.Field, string(val))
		} else if eq.Field == FieldKind && !slices.Contains(Kinds, string(val)) {
			v.add("unknown kind %q: want one of %v", string(val), Kinds)
		}
	case ir.IRInt:
		if typ != TypeInt {
			v.add("field %q wants a string, got %d", eq.Field, int64(val))
		}
	default:
		v.add("field %q: unsupported literal %T", eq.Field, eq.Value)
	}
}
