// Package compiler turns job files into ir.Job values and generates the
// datasets they describe.
//
// Job files are CUE or YAML. Both are unified with the embedded #Job schema
// before decoding, so defaults and type constraints apply uniformly.
package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/geochunk/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Compiler holds a CUE context and the compiled schema. It is not safe for
// concurrent use.
type Compiler struct {
	ctx *cue.Context
	job cue.Value
}

// New compiles the embedded schema.
func New() (*Compiler, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", formatCUEError(err))
	}
	return &Compiler{ctx: ctx, job: schema.LookupPath(cue.ParsePath("#Job"))}, nil
}

// LoadFile reads and compiles a job file. The format is chosen by
// extension: .cue for CUE, anything else is parsed as YAML (which also
// accepts JSON).
func (c *Compiler) LoadFile(path string) (*ir.Job, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Load(path, src)
}

// Load compiles job source. filename is used for the format choice and in
// error positions.
func (c *Compiler) Load(filename string, src []byte) (*ir.Job, error) {
	var v cue.Value
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".cue":
		v = c.ctx.CompileBytes(src, cue.Filename(filename))
	default:
		f, err := cueyaml.Extract(filename, src)
		if err != nil {
			return nil, formatCUEError(err)
		}
		v = c.ctx.BuildFile(f)
	}
	return c.Compile(v)
}

// Compile validates v against #Job and decodes it.
func (c *Compiler) Compile(v cue.Value) (*ir.Job, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.LookupPath(cue.ParsePath("name")).Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}

	unified := c.job.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var job ir.Job
	if err := unified.Decode(&job); err != nil {
		return nil, formatCUEError(err)
	}
	return &job, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with a position wins.
	first := errs[0]
	field := "cue"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: field, Message: first.Error(), Pos: positions[0]}
	}
	return &CompileError{Field: field, Message: first.Error()}
}
