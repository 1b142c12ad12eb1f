package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voltlab/internal/pipeline"
	"voltlab/internal/repair"
	"voltlab/internal/sandbox"
)

var (
	runLogIssues bool
	runWatch     bool
)

// runCmd pushes circuit source through the pipeline
var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run circuit code through the repair/validate/execute pipeline",
	Long: `Reads circuit DSL source from a file (or stdin when no file is given),
repairs known generation mistakes, validates it, executes it in the
sandbox, and prints the extracted records as JSON.

With --watch the file is re-run every time it changes, until interrupted.

Example:
  voltlab run lowpass.go
  voltlab run --watch lowpass.go
  cat lowpass.go | voltlab run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().BoolVar(&runLogIssues, "log-issues", true, "Record failures in the issue database")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Re-run whenever the source file changes")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	orch := newOrchestrator()

	if runWatch {
		if len(args) != 1 {
			return fmt.Errorf("--watch needs a file argument, not stdin")
		}
		return watchAndRun(ctx, orch, args[0])
	}

	source, err := readSource(args)
	if err != nil {
		return err
	}
	out := orch.Run(ctx, source)

	reportRepairs(out)
	if out.Stage == pipeline.StageFailed {
		if runLogIssues {
			logOutcomeIssue(out, "")
		}
		printFailure(out)
		return fmt.Errorf("run %s failed", out.RunID)
	}

	// Done with zero records is the soft empty-result case; it still goes
	// into the issue log.
	if runLogIssues && len(out.Records) == 0 {
		logOutcomeIssue(out, "")
	}
	for _, d := range out.Diagnostics {
		fmt.Fprintf(os.Stderr, "note: %s\n", d)
	}
	return printRecords(out)
}

// watchAndRun re-runs the file on every change until the context is
// cancelled. The watch sits on the directory because most editors replace
// the file on save rather than writing it in place.
func watchAndRun(ctx context.Context, orch *pipeline.Orchestrator, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	runOnce := func() {
		source, err := readSource([]string{path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return
		}
		out := orch.Run(ctx, source)
		reportRepairs(out)
		if out.Stage == pipeline.StageFailed {
			if runLogIssues {
				logOutcomeIssue(out, "")
			}
			printFailure(out)
			return
		}
		if runLogIssues && len(out.Records) == 0 {
			logOutcomeIssue(out, "")
		}
		for _, d := range out.Diagnostics {
			fmt.Fprintf(os.Stderr, "note: %s\n", d)
		}
		_ = printRecords(out)
	}

	runOnce()
	logger.Info("Watching for changes", zap.String("file", target))

	// Editors fire bursts of events per save; coalesce them.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(100 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			runOnce()
		}
	}
}

func printFailure(out *pipeline.Outcome) {
	fmt.Fprintf(os.Stderr, "pipeline failed at %s: %s\n", out.FailedAt, out.Err.Summary)
	if out.Err.Remediation != "" {
		fmt.Fprintf(os.Stderr, "hint: %s\n", out.Err.Remediation)
	}
}

// newOrchestrator builds the pipeline from the loaded config.
func newOrchestrator() *pipeline.Orchestrator {
	executor := sandbox.NewWithTimeout(cfg.GetExecutionTimeout())
	repairs := repair.Options{ConvertConstantSources: cfg.Pipeline.ConvertConstantSources}
	return pipeline.New(executor, repairs, logger)
}

func readSource(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read source: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no source given: pass a file or pipe code on stdin")
	}
	return string(data), nil
}

func reportRepairs(out *pipeline.Outcome) {
	for _, line := range out.Sanitized {
		logger.Debug("Sanitizer removed line", zap.String("line", line))
	}
	for rule, n := range out.RepairCounts {
		logger.Info("Applied repair rule", zap.String("rule", rule), zap.Int("count", n))
	}
}

func printRecords(out *pipeline.Outcome) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	logger.Info("Run complete",
		zap.String("run_id", out.RunID),
		zap.Int("records", len(out.Records)))
	return nil
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
