package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voltlab/internal/sandbox"
	"voltlab/internal/spice"
)

// Class is the error taxonomy callers branch on. Each class implies a
// different recovery: re-prompt the generator, restart the worker process,
// or give up on this run.
type Class string

const (
	ClassSyntax        Class = "syntax"
	ClassValidation    Class = "validation"
	ClassEngineInit    Class = "engine-init"
	ClassEngineRuntime Class = "engine-runtime"
)

// ClassifiedError wraps a stage failure with its class and a remediation
// hint for whoever reads the diagnostics. The underlying error text is kept
// verbatim; the engine's own messages are already human-meaningful.
type ClassifiedError struct {
	Class       Class
	Summary     string
	Remediation string
	Original    error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Class, e.Summary)
}

func (e *ClassifiedError) Unwrap() error { return e.Original }

func validationError(violations []string) *ClassifiedError {
	return &ClassifiedError{
		Class:       ClassValidation,
		Summary:     "validation failed: " + strings.Join(violations, ", "),
		Remediation: "regenerate the circuit code; the listed checks describe what was missing",
		Original:    fmt.Errorf("validation checks failed: %s", strings.Join(violations, ", ")),
	}
}

// classifyExecution maps an executor error onto the taxonomy.
func classifyExecution(err error) *ClassifiedError {
	var compileErr *sandbox.CompileError
	if errors.As(err, &compileErr) {
		return &ClassifiedError{
			Class:       ClassSyntax,
			Summary:     compileErr.Error(),
			Remediation: "regenerate the circuit code; the repaired source does not parse",
			Original:    err,
		}
	}
	var initErr *spice.InitError
	if errors.As(err, &initErr) {
		return &ClassifiedError{
			Class:       ClassEngineInit,
			Summary:     initErr.Message,
			Remediation: "restart the worker process; retrying in this process cannot succeed",
			Original:    err,
		}
	}
	var simErr *spice.SimError
	if errors.As(err, &simErr) {
		return &ClassifiedError{
			Class:       ClassEngineRuntime,
			Summary:     simErr.Error(),
			Remediation: "the engine rejected the circuit numerically; check topology and component values",
			Original:    err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ClassifiedError{
			Class:       ClassEngineRuntime,
			Summary:     "execution timed out: " + err.Error(),
			Remediation: "simplify the circuit or raise the execution timeout",
			Original:    err,
		}
	}
	if errors.Is(err, sandbox.ErrNoAnalysis) {
		return &ClassifiedError{
			Class:       ClassEngineRuntime,
			Summary:     err.Error(),
			Remediation: "the code ran but never assigned an analysis result; regenerate",
			Original:    err,
		}
	}
	return &ClassifiedError{
		Class:       ClassEngineRuntime,
		Summary:     err.Error(),
		Remediation: "unrecognized execution failure; inspect the original error",
		Original:    err,
	}
}
