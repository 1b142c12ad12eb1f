package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"voltlab/internal/issues"
)

var issuesRecentN int

// issuesCmd manages the failure log
var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Inspect and resolve logged pipeline failures",
}

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent issues",
	RunE:  listIssues,
}

var issuesSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count unresolved issues per type",
	RunE:  summarizeIssues,
}

var issuesResolveCmd = &cobra.Command{
	Use:   "resolve [id] [notes]",
	Short: "Mark an issue resolved",
	Args:  cobra.MinimumNArgs(1),
	RunE:  resolveIssue,
}

func init() {
	issuesListCmd.Flags().IntVarP(&issuesRecentN, "limit", "n", 20, "Number of issues to show")
	issuesCmd.AddCommand(issuesListCmd)
	issuesCmd.AddCommand(issuesSummaryCmd)
	issuesCmd.AddCommand(issuesResolveCmd)
}

func openStore() (*issues.Store, error) {
	store, err := issues.Open(cfg.Issues.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open issue database: %w", err)
	}
	return store, nil
}

func listIssues(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.Recent(issuesRecentN)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No issues logged.")
		return nil
	}

	for _, issue := range list {
		fmt.Printf("#%-4d %-19s %-16s %-11s %s\n",
			issue.ID,
			issue.CreatedAt.Format("2006-01-02 15:04:05"),
			issue.Type,
			issue.Status,
			firstLine(issue.ErrorText))
		if issue.Request != "" {
			fmt.Printf("      request: %s\n", firstLine(issue.Request))
		}
	}
	return nil
}

func summarizeIssues(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.Summary()
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("No unresolved issues.")
		return nil
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Println("Unresolved issues by type:")
	for _, t := range types {
		fmt.Printf("  %-18s %d\n", t, counts[t])
	}
	return nil
}

func resolveIssue(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid issue id %q", args[0])
	}
	notes := ""
	if len(args) > 1 {
		notes = args[1]
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Resolve(id, notes); err != nil {
		return err
	}
	fmt.Printf("Issue #%d resolved.\n", id)
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
		if i > 72 {
			return s[:i] + "..."
		}
	}
	return s
}
