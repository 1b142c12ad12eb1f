// Package pipeline drives one generated snippet through
// sanitize → repair → validate → execute → extract and reports a single
// outcome. The pipeline is strictly forward: no stage reaches back into an
// earlier one, and there is no retry here. A failed outcome goes back to the
// caller, who may ask the generator for fresh code and start a new run.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voltlab/internal/extract"
	"voltlab/internal/repair"
	"voltlab/internal/sandbox"
	"voltlab/internal/validate"
)

// Stage identifies where a run currently is, or where it stopped.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageSanitizing Stage = "sanitizing"
	StageRepairing  Stage = "repairing"
	StageValidating Stage = "validating"
	StageExecuting  Stage = "executing"
	StageExtracting Stage = "extracting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// emptyResultHint is attached to a Done outcome with zero records.
const emptyResultHint = "no node-signal array matched the independent-variable length; check node naming"

// Outcome is everything one run produced. Records is non-empty exactly when
// Err is nil and extraction found at least one sample; a clean run with
// nothing to show is Done with zero records and a diagnostic hint, which is
// deliberately distinguishable from Failed.
type Outcome struct {
	RunID        string
	Stage        Stage // StageDone or StageFailed
	FailedAt     Stage // stage that failed, empty when Done
	Records      []extract.Record
	Err          *ClassifiedError
	RepairCounts map[string]int
	Sanitized    []string // lines the sanitizer removed
	Diagnostics  []string
}

// Orchestrator runs pipelines. At most one run may be mid-flight per
// process; the engine session enforces that and a violation surfaces as an
// engine-init failure from the executing stage.
type Orchestrator struct {
	executor *sandbox.Executor
	repairs  repair.Options
	log      *zap.Logger
}

// New creates an orchestrator. A nil logger disables logging.
func New(executor *sandbox.Executor, repairs repair.Options, log *zap.Logger) *Orchestrator {
	if executor == nil {
		executor = sandbox.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{executor: executor, repairs: repairs, log: log}
}

// Run takes one snippet of generated source through the whole pipeline.
func (o *Orchestrator) Run(ctx context.Context, source string) *Outcome {
	out := &Outcome{RunID: uuid.NewString(), Stage: StageIdle}
	log := o.log.With(zap.String("run_id", out.RunID))

	out.Stage = StageSanitizing
	cleaned, removed := repair.Sanitize(source)
	out.Sanitized = removed
	if len(removed) > 0 {
		log.Debug("sanitizer removed setup statements", zap.Int("lines", len(removed)))
	}

	out.Stage = StageRepairing
	repaired := repair.Apply(cleaned, o.repairs)
	out.RepairCounts = repaired.Counts
	if len(repaired.Counts) > 0 {
		log.Info("repair rules applied", zap.Any("counts", repaired.Counts))
	}

	out.Stage = StageValidating
	verdict := validate.Validate(repaired.Source)
	if !verdict.OK {
		log.Warn("validation rejected source", zap.Strings("violations", verdict.Violations))
		return o.fail(out, StageValidating, validationError(verdict.Violations))
	}

	out.Stage = StageExecuting
	analysis, err := o.executor.Execute(ctx, repaired.Source)
	if err != nil {
		cerr := classifyExecution(err)
		log.Warn("execution failed", zap.String("class", string(cerr.Class)), zap.Error(err))
		return o.fail(out, StageExecuting, cerr)
	}

	out.Stage = StageExtracting
	out.Records = extract.Normalize(analysis)

	out.Stage = StageDone
	if len(out.Records) == 0 {
		out.Diagnostics = append(out.Diagnostics, emptyResultHint)
		log.Info("run finished with no records")
	} else {
		log.Info("run finished", zap.Int("records", len(out.Records)))
	}
	return out
}

func (o *Orchestrator) fail(out *Outcome, at Stage, err *ClassifiedError) *Outcome {
	out.FailedAt = at
	out.Stage = StageFailed
	out.Err = err
	return out
}
