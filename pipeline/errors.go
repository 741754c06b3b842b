package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorClass partitions run failures by how the orchestrator should react:
// transient errors are retried, validation errors quarantine the offending rows,
// consistency errors abort the run without retry, configuration errors fail fast
// before any store is touched.
type ErrorClass string

const (
	ErrorClassTransient     ErrorClass = "transient"
	ErrorClassValidation    ErrorClass = "validation"
	ErrorClassConsistency   ErrorClass = "consistency"
	ErrorClassConfiguration ErrorClass = "configuration"
)

// ClassifiedError wraps an error with its class and the run stage it surfaced in.
type ClassifiedError struct {
	Class ErrorClass
	Stage Stage
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%v error in stage %v: %v", e.Class, e.Stage, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func NewTransientError(stage Stage, err error) error {
	return &ClassifiedError{Class: ErrorClassTransient, Stage: stage, Err: err}
}

func NewValidationError(stage Stage, err error) error {
	return &ClassifiedError{Class: ErrorClassValidation, Stage: stage, Err: err}
}

func NewConsistencyError(stage Stage, err error) error {
	return &ClassifiedError{Class: ErrorClassConsistency, Stage: stage, Err: err}
}

func NewConfigurationError(stage Stage, err error) error {
	return &ClassifiedError{Class: ErrorClassConfiguration, Stage: stage, Err: err}
}

// ClassOf returns the class of err. Unclassified errors are treated as transient
// so an unknown store failure is retried rather than silently accepted.
func ClassOf(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ErrorClassTransient
}

// StageOf returns the stage recorded on err, or StageUnknown for plain errors.
func StageOf(err error) Stage {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return StageUnknown
}

// IsRetryable reports whether the orchestrator may retry after err.
func IsRetryable(err error) bool {
	return ClassOf(err) == ErrorClassTransient
}
