package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voltlab/internal/triage"
)

var triageShowPrompt bool

// triageCmd analyzes the issue log
var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Sort open issues into prompt problems versus code bugs",
	Long: `Reads the open issues, categorizes each as a likely prompt problem, a
likely host-code bug, or mixed, and prints a report with a recommended
fix strategy per issue. With --prompt it also prints a system prompt
tightened against the failure patterns actually observed, suitable for
dropping into the config.`,
	RunE: runTriage,
}

func init() {
	triageCmd.Flags().BoolVar(&triageShowPrompt, "prompt", false, "Print an improved system prompt derived from the failures")
}

func runTriage(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	open, err := store.OpenIssues()
	if err != nil {
		return err
	}

	tr := triage.New(logger)
	analyses := tr.AnalyzeAll(open)
	fmt.Print(triage.Report(analyses))

	if triageShowPrompt {
		fmt.Println("\n--- improved system prompt ---")
		fmt.Println(triage.ImprovedSystemPrompt(open))
	}
	return nil
}
