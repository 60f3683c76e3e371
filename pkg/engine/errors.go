package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassRetryable indicates a stage failure that feeds back into another
	// drafting attempt. Examples: generated code rejected by validation.
	ErrorClassRetryable ErrorClass = "retryable"

	// ErrorClassPermanent indicates a failure that another attempt cannot fix.
	// Examples: unknown transform name, exhausted retry budget.
	ErrorClassPermanent ErrorClass = "permanent"
)

// PipelineError represents a classified error with context.
type PipelineError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Stage is the generation stage or operation that failed, if applicable.
	Stage string `json:"stage,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// Two pipeline errors match when their class and code match.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithStage adds stage context to an error.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// WithDetail adds a detail field to the error context.
func (e *PipelineError) WithDetail(key string, value interface{}) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error codes.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeExecution          = "EXECUTION_ERROR"
	ErrCodeCompilation        = "COMPILATION_ERROR"
	ErrCodeSynthesisFailed    = "SYNTHESIS_FAILED"
	ErrCodeSynthesisExhausted = "SYNTHESIS_EXHAUSTED"
	ErrCodeUnknownTransform   = "UNKNOWN_TRANSFORM"
	ErrCodeUnknownLevel       = "UNKNOWN_OPTIMIZATION_LEVEL"
	ErrCodeMissingProgram     = "MISSING_PROGRAM"
	ErrCodeTransformFailed    = "TRANSFORM_FAILED"
	ErrCodeInvalidInput       = "INVALID_INPUT"
)

// Sentinels for errors.Is checks. Only Class and Code take part in matching.
var (
	ErrValidation         = &PipelineError{Class: ErrorClassRetryable, Code: ErrCodeValidation}
	ErrExecution          = &PipelineError{Class: ErrorClassRetryable, Code: ErrCodeExecution}
	ErrCompilation        = &PipelineError{Class: ErrorClassRetryable, Code: ErrCodeCompilation}
	ErrSynthesisFailed    = &PipelineError{Class: ErrorClassRetryable, Code: ErrCodeSynthesisFailed}
	ErrSynthesisExhausted = &PipelineError{Class: ErrorClassPermanent, Code: ErrCodeSynthesisExhausted}
	ErrUnknownTransform   = &PipelineError{Class: ErrorClassPermanent, Code: ErrCodeUnknownTransform}
	ErrUnknownLevel       = &PipelineError{Class: ErrorClassPermanent, Code: ErrCodeUnknownLevel}
	ErrMissingProgram     = &PipelineError{Class: ErrorClassPermanent, Code: ErrCodeMissingProgram}
)

// NewValidationError creates an error for generated source that failed a
// structural check. The message is the feedback for the next attempt.
func NewValidationError(reason string) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassRetryable,
		Code:    ErrCodeValidation,
		Message: reason,
		Stage:   string(StageValidating),
	}
}

// NewExecutionError creates an error for source that could not be loaded or
// did not yield a usable circuit entry point.
func NewExecutionError(message string, err error) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassRetryable,
		Code:    ErrCodeExecution,
		Message: message,
		Stage:   string(StageExecuting),
		Err:     err,
	}
}

// NewCompilationError creates an error for a program whose dry-run trace failed.
func NewCompilationError(message string, err error) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassRetryable,
		Code:    ErrCodeCompilation,
		Message: message,
		Stage:   string(StageCompiling),
		Err:     err,
	}
}

// NewSynthesisError creates an error for a failed call to the synthesis client.
func NewSynthesisError(err error) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassRetryable,
		Code:    ErrCodeSynthesisFailed,
		Message: "synthesis request failed",
		Stage:   string(StageDrafting),
		Err:     err,
	}
}

// NewSynthesisExhaustedError wraps the last stage failure once the attempt
// budget is spent.
func NewSynthesisExhaustedError(attempts int, last error) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeSynthesisExhausted,
		Message: fmt.Sprintf("failed to generate valid circuit after %d attempts", attempts),
		Stage:   string(StageFailed),
		Err:     last,
		Details: map[string]interface{}{"attempts": attempts},
	}
}

// NewUnknownTransformError reports a transform name that is not registered.
func NewUnknownTransformError(name string, valid []string) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeUnknownTransform,
		Message: fmt.Sprintf("unknown transform %q, available: %s", name, strings.Join(valid, ", ")),
		Details: map[string]interface{}{"name": name, "available": valid},
	}
}

// NewUnknownLevelError reports an optimization level that is not registered.
func NewUnknownLevelError(level string, valid []string) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeUnknownLevel,
		Message: fmt.Sprintf("unknown optimization level %q, available: %s", level, strings.Join(valid, ", ")),
		Details: map[string]interface{}{"level": level, "available": valid},
	}
}

// NewMissingProgramError reports an operation that needs an executable
// program on a circuit that only carries metadata.
func NewMissingProgramError(operation string) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeMissingProgram,
		Message: fmt.Sprintf("%s requires a circuit program", operation),
		Stage:   operation,
	}
}

// NewTransformError wraps a failure raised by a transform function.
func NewTransformError(name string, err error) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeTransformFailed,
		Message: fmt.Sprintf("transform %s failed", name),
		Err:     err,
		Details: map[string]interface{}{"name": name},
	}
}

// NewInvalidInputError reports malformed caller input.
func NewInvalidInputError(message string) *PipelineError {
	return &PipelineError{
		Class:   ErrorClassPermanent,
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}

func hasCode(err error, code string) bool {
	var e *PipelineError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation returns true if the error is a validation failure.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsExecution returns true if the error is an execution failure.
func IsExecution(err error) bool { return hasCode(err, ErrCodeExecution) }

// IsCompilation returns true if the error is a compilation failure.
func IsCompilation(err error) bool { return hasCode(err, ErrCodeCompilation) }

// IsSynthesisExhausted returns true if the retry budget ran out.
func IsSynthesisExhausted(err error) bool { return hasCode(err, ErrCodeSynthesisExhausted) }

// IsUnknownTransform returns true if the error names an unregistered transform.
func IsUnknownTransform(err error) bool { return hasCode(err, ErrCodeUnknownTransform) }

// IsUnknownLevel returns true if the error names an unregistered optimization level.
func IsUnknownLevel(err error) bool { return hasCode(err, ErrCodeUnknownLevel) }

// IsMissingProgram returns true if the error reports an absent program.
func IsMissingProgram(err error) bool { return hasCode(err, ErrCodeMissingProgram) }

// IsInvalidInput returns true if the error reports malformed caller input.
func IsInvalidInput(err error) bool { return hasCode(err, ErrCodeInvalidInput) }

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *PipelineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the error feeds back into another drafting attempt.
// Only the outermost classified error decides, so an exhausted error wrapping
// a validation failure is not retryable.
func IsRetryable(err error) bool {
	var e *PipelineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassRetryable
	}
	return false
}
