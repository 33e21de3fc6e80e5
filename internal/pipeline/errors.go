package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidInput means a raster is missing or has zero area.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidSelection means a caller-drawn region is malformed.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrPatternGenerationFailed means the texture could not be turned into a
	// tile.
	ErrPatternGenerationFailed = errors.New("pattern generation failed")

	// ErrCompositingFailed means the blend passes could not run.
	ErrCompositingFailed = errors.New("compositing failed")
)

// ErrCancelled is returned when the context is done before processing
// finishes. It is a terminal outcome rather than a failure: it is never
// wrapped in an *Error, and the returned error also matches the context's own
// error (context.Canceled or context.DeadlineExceeded).
var ErrCancelled = errors.New("processing cancelled")

// Error describes a failed run: which kind of failure, in which stage.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error

	// Stage is the stage that was running.
	Stage Stage

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s stage: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
