package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voltlab/internal/generate"
	"voltlab/internal/issues"
	"voltlab/internal/pipeline"
)

var (
	askShowCode bool
	askRetries  int
)

// askCmd generates circuit code from a natural-language request and runs it
var askCmd = &cobra.Command{
	Use:   "ask [request]",
	Short: "Generate circuit code from a request and run it",
	Long: `Sends the request to the configured language model, extracts the
generated circuit code, and pushes it through the pipeline. On a
classified failure the error is fed back to the model and generation is
retried, up to --retries attempts. Failures are recorded in the issue
database either way.

Example:
  voltlab ask "simulate an RC low-pass filter with a 1kHz cutoff"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowCode, "show-code", false, "Print the generated source before running it")
	askCmd.Flags().IntVar(&askRetries, "retries", 2, "Regeneration attempts after a classified failure")
}

func runAsk(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	if err := cfg.Validate(); err != nil {
		return err
	}
	client, err := generate.NewClient(cfg.LLM)
	if err != nil {
		return err
	}
	gen := generate.New(client, logger)
	orch := newOrchestrator()

	ctx, cancel := signalContext()
	defer cancel()

	priorContext := ""
	for attempt := 0; attempt <= askRetries; attempt++ {
		genCtx, genCancel := context.WithTimeout(ctx, cfg.GetLLMTimeout())
		source, err := gen.Generate(genCtx, request, priorContext)
		genCancel()
		if err != nil {
			logGenerateIssue(request, err)
			return fmt.Errorf("generation failed: %w", err)
		}
		if askShowCode {
			fmt.Fprintf(os.Stderr, "--- generated source (attempt %d) ---\n%s\n---\n", attempt+1, source)
		}

		out := orch.Run(ctx, source)
		reportRepairs(out)
		if out.Stage == pipeline.StageDone {
			if len(out.Records) == 0 {
				logOutcomeIssue(out, request)
			}
			for _, d := range out.Diagnostics {
				fmt.Fprintf(os.Stderr, "note: %s\n", d)
			}
			return printRecords(out)
		}

		logOutcomeIssue(out, request)
		logger.Warn("Attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("stage", string(out.FailedAt)),
			zap.String("error", out.Err.Summary))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		priorContext = fmt.Sprintf("The previous attempt failed during %s:\n%s\n%s\n\nThe code was:\n%s",
			out.FailedAt, out.Err.Summary, out.Err.Remediation, source)
	}

	return fmt.Errorf("all %d attempts failed", askRetries+1)
}

// logOutcomeIssue records a failed pipeline run. Issue logging is best
// effort; a broken issue db never masks the real failure.
func logOutcomeIssue(out *pipeline.Outcome, request string) {
	store, err := issues.Open(cfg.Issues.DatabasePath)
	if err != nil {
		logger.Warn("Could not open issue database", zap.Error(err))
		return
	}
	defer store.Close()

	issue := issues.Issue{
		Type:    issues.TypeForOutcome(out),
		Request: request,
		Model:   cfg.LLM.Model,
		RunID:   out.RunID,
	}
	switch {
	case out.Err != nil:
		issue.ErrorText = out.Err.Summary
	case len(out.Diagnostics) > 0:
		// Empty-result outcomes carry the hint as a diagnostic.
		issue.ErrorText = strings.Join(out.Diagnostics, "; ")
	}
	if _, err := store.Log(issue); err != nil {
		logger.Warn("Could not log issue", zap.Error(err))
	}
}

func logGenerateIssue(request string, genErr error) {
	store, err := issues.Open(cfg.Issues.DatabasePath)
	if err != nil {
		logger.Warn("Could not open issue database", zap.Error(err))
		return
	}
	defer store.Close()

	_, err = store.Log(issues.Issue{
		Type:      issues.TypeForGenerateError(genErr),
		Request:   request,
		ErrorText: genErr.Error(),
		Model:     cfg.LLM.Model,
	})
	if err != nil {
		logger.Warn("Could not log issue", zap.Error(err))
	}
}
