package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPipeline is returned when the pipeline breaks a model invariant.
	ErrInvalidPipeline = errors.New("invalid pipeline")
	// ErrUnknownDependency is returned when a dependency names no task.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// UnknownDependencyError reports a dependency that matches no task anywhere in
// the pipeline.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%s: task %q depends on %q", ErrUnknownDependency, e.Task, e.Dependency)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }
