package compiler

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/transform"
	"github.com/roach88/geochunk/internal/window"
)

// Validation error codes (E100-E199)
const (
	ErrJobNameEmpty = "E101" // name is required

	// Dataset errors (E102-E109)
	ErrNoDimensions       = "E102" // at least one dimension required
	ErrDuplicateName      = "E103" // duplicate dimension or variable name
	ErrUndeclaredDim      = "E104" // variable uses an undeclared dimension
	ErrInvalidFill        = "E105" // unknown fill mode
	ErrFillValuesMismatch = "E106" // values length differs from shape
	ErrGridFillRank       = "E107" // grid fills need exactly two dims

	// Dispatch and transform errors (E110-E119)
	ErrUnknownDispatchDim = "E110" // dispatch dim not declared
	ErrInvalidChunking    = "E111" // chunks/buffer rejected by the window plan
	ErrInvalidTransform   = "E112" // unknown transform or bad params
	ErrHaloTooSmall       = "E113" // buffer smaller than the transform halo
)

// ValidationError represents a job validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled job for semantic errors the schema cannot
// express. Returns all errors found (does not fail-fast).
func Validate(job *ir.Job) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if job.Name == "" {
		add(ErrJobNameEmpty, "name", "name is required")
	}

	sizes := make(map[string]int, len(job.Dataset.Dims))
	if len(job.Dataset.Dims) == 0 {
		add(ErrNoDimensions, "dataset.dims", "at least one dimension is required")
	}
	for i, d := range job.Dataset.Dims {
		name := ir.NormalizeName(d.Name)
		if _, dup := sizes[name]; dup {
			add(ErrDuplicateName, fmt.Sprintf("dataset.dims[%d]", i), "duplicate dimension %q", d.Name)
			continue
		}
		sizes[name] = d.Size
	}

	seen := make(map[string]bool, len(job.Dataset.Variables))
	for i, v := range job.Dataset.Variables {
		field := fmt.Sprintf("dataset.variables[%d]", i)
		name := ir.NormalizeName(v.Name)
		if seen[name] {
			add(ErrDuplicateName, field, "duplicate variable %q", v.Name)
		}
		seen[name] = true

		count, known := 1, true
		for _, d := range v.Dims {
			n, ok := sizes[ir.NormalizeName(d)]
			if !ok {
				add(ErrUndeclaredDim, field+".dims", "dimension %q is not declared", d)
				known = false
				continue
			}
			count *= n
		}

		fill := v.Fill
		if fill == "" {
			fill = ir.FillArange
		}
		switch {
		case !ir.ValidFills[fill]:
			add(ErrInvalidFill, field+".fill", "unknown fill %q", v.Fill)
		case fill == ir.FillValues && known && len(v.Values) != count:
			add(ErrFillValuesMismatch, field+".values", "want %d values, got %d", count, len(v.Values))
		case (fill == ir.FillGridX || fill == ir.FillGridY) && len(v.Dims) != 2:
			add(ErrGridFillRank, field+".dims", "%s needs exactly two dims, got %d", fill, len(v.Dims))
		}
	}

	tr, err := transform.Build(job.Transform)
	if err != nil {
		add(ErrInvalidTransform, "transform", "%v", err)
	}

	dim := job.Dispatch.Dim
	if dim == "" && len(job.Dataset.Dims) > 0 {
		dim = job.Dataset.Dims[0].Name
	}
	size, ok := sizes[ir.NormalizeName(dim)]
	switch {
	case dim != "" && !ok:
		add(ErrUnknownDispatchDim, "dispatch.dim", "dimension %q is not declared", dim)
	case ok && job.Dispatch.Chunks > 0:
		if _, err := window.NewPlan(dim, size, job.Dispatch.Chunks, job.Dispatch.Buffer); err != nil {
			add(ErrInvalidChunking, "dispatch", "%v", err)
		}
	}

	if err == nil && tr.Dim != "" && job.Dispatch.Buffer < tr.Halo &&
		ir.NormalizeName(tr.Dim) == ir.NormalizeName(dim) {
		add(ErrHaloTooSmall, "dispatch.buffer",
			"%s along %s needs buffer >= %d, got %d", tr.Name, tr.Dim, tr.Halo, job.Dispatch.Buffer)
	}

	slices.SortStableFunc(errs, func(a, b ValidationError) int {
		return cmp.Compare(a.Code, b.Code)
	})
	return errs
}
