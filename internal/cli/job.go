package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/geochunk/internal/compiler"
	"github.com/roach88/geochunk/internal/dataset"
	"github.com/roach88/geochunk/internal/dispatch"
	"github.com/roach88/geochunk/internal/ir"
	"github.com/roach88/geochunk/internal/transform"
)

// jobError is a failure to load a job, already classified for output.
type jobError struct {
	Exit    int
	Code    string
	Message string
	Err     error
	Issues  []compiler.ValidationError
}

func (e *jobError) Error() string { return fmt.Sprintf("%s: %v", e.Message, e.Err) }

func (e *jobError) Unwrap() error { return e.Err }

// loadJob compiles and validates the job at path.
func loadJob(path string) (*ir.Job, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &jobError{Exit: ExitCommandError, Code: ErrCodeNotFound,
			Message: "job file not found", Err: err}
	}

	c, err := compiler.New()
	if err != nil {
		return nil, &jobError{Exit: ExitCommandError, Code: ErrCodeGeneric,
			Message: "failed to initialize compiler", Err: err}
	}
	job, err := c.LoadFile(path)
	if err != nil {
		issue := compiler.ValidationError{Field: "job", Message: err.Error(), Code: ErrCodeCompile}
		var cErr *compiler.CompileError
		if errors.As(err, &cErr) {
			issue.Field = cErr.Field
			issue.Message = cErr.Message
		}
		return nil, &jobError{Exit: ExitFailure, Code: ErrCodeCompile,
			Message: "job failed to compile", Err: err, Issues: []compiler.ValidationError{issue}}
	}

	if issues := compiler.Validate(job); len(issues) > 0 {
		return job, &jobError{Exit: ExitFailure, Code: ErrCodeInvalid,
			Message: fmt.Sprintf("job %s is invalid", job.Name), Err: issues[0], Issues: issues}
	}
	return job, nil
}

// prepare builds the job's input dataset and transformation.
func prepare(job *ir.Job) (*dataset.Dataset, transform.Transform, error) {
	ds, err := compiler.BuildDataset(job.Dataset)
	if err != nil {
		return nil, transform.Transform{}, fmt.Errorf("build dataset: %w", err)
	}
	tr, err := transform.Build(job.Transform)
	if err != nil {
		return nil, transform.Transform{}, err
	}
	return ds, tr, nil
}

// chunking maps the job's dimension, chunk count and buffer to dispatcher
// options. An unset chunk count leaves the CPU count default in place.
func chunking(spec ir.DispatchSpec) []dispatch.Option {
	opts := []dispatch.Option{
		dispatch.WithDimension(spec.Dim),
		dispatch.WithBuffer(spec.Buffer),
	}
	if spec.Chunks != 0 {
		opts = append(opts, dispatch.WithChunks(spec.Chunks))
	}
	return opts
}

// failJob reports a loadJob error through f.
func failJob(f *OutputFormatter, err error) error {
	var je *jobError
	if !errors.As(err, &je) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load job", err)
	}
	var details any
	if len(je.Issues) > 0 {
		details = je.Issues
	}
	if outErr := f.Error(je.Code, je.Error(), details); outErr != nil {
		return outErr
	}
	if f.Format != "json" {
		for _, issue := range je.Issues {
			fmt.Fprintf(f.Writer, "  %s\n", issue.Error())
		}
	}
	return WrapExitError(je.Exit, je.Message, je.Err)
}
