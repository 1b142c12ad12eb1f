package issues

import (
	"context"
	"errors"

	"voltlab/internal/generate"
	"voltlab/internal/pipeline"
)

// TypeForOutcome maps a pipeline outcome onto an issue type. Only failed or
// empty outcomes are worth logging; a clean run with records returns "".
func TypeForOutcome(out *pipeline.Outcome) string {
	if out == nil {
		return TypeOther
	}
	if out.Stage == pipeline.StageDone {
		if len(out.Records) == 0 {
			return TypeOther
		}
		return ""
	}
	if out.Err == nil {
		return TypeOther
	}
	if errors.Is(out.Err.Original, context.DeadlineExceeded) {
		return TypeTimeout
	}
	switch out.Err.Class {
	case pipeline.ClassSyntax:
		return TypeSyntaxError
	case pipeline.ClassValidation:
		return TypeInvalidCircuit
	case pipeline.ClassEngineInit, pipeline.ClassEngineRuntime:
		return TypeSimulationError
	}
	return TypeOther
}

// TypeForGenerateError maps a generator failure onto an issue type.
func TypeForGenerateError(err error) string {
	switch {
	case errors.Is(err, generate.ErrEmptyOutput):
		return TypeEmptyOutput
	case errors.Is(err, generate.ErrNoCodeBlock):
		return TypeNoCodeBlock
	case errors.Is(err, context.DeadlineExceeded):
		return TypeTimeout
	default:
		return TypeAPIError
	}
}
