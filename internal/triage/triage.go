// Package triage reads the issue log and sorts failures into "fix the
// prompt" versus "fix the code" buckets, then proposes a tightened system
// prompt targeting the observed failure patterns. Triage only reads issues;
// resolving them stays a separate, deliberate step.
package triage

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voltlab/internal/generate"
	"voltlab/internal/issues"
)

// Categories a triaged issue lands in.
const (
	CategoryPromptIssue = "likely_prompt_issue"
	CategoryCodeBug     = "likely_code_bug"
	CategoryMixed       = "mixed"
)

// Fix strategies recommended per analysis.
const (
	StrategyImprovePrompt     = "improve_system_prompt"
	StrategyParameterGuidance = "parameter_guidance"
	StrategyInfrastructure    = "check_infrastructure"
	StrategyReviewNeeded      = "review_needed"
)

// Analysis is one triaged issue.
type Analysis struct {
	IssueID   int64
	IssueType string
	Category  string
	RootCause string
	Strategy  string
}

// Triager analyzes logged issues.
type Triager struct {
	log *zap.Logger
}

// New creates a triager. A nil logger disables logging.
func New(log *zap.Logger) *Triager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Triager{log: log}
}

// Error-text fragments that point at infrastructure or host-code problems
// rather than generator output.
var codeBugKeywords = []string{
	"duplicate declaration",
	"engine session busy",
	"connection", "network",
	"authentication", "unauthorized",
	"timeout",
}

// Categorize decides whether an issue is the prompt's fault, the host
// code's fault, or unclear. The request text and the error text both weigh
// in.
func Categorize(issueType, request, errorText string) string {
	errLower := strings.ToLower(errorText)
	reqLower := strings.ToLower(request)

	switch issueType {
	case issues.TypeEmptyOutput, issues.TypeNoCodeBlock:
		// The model had a clear circuit request and still produced nothing
		// usable; that is a prompt problem. An off-topic request is unclear.
		for _, word := range []string{"circuit", "simulate", "create", "filter"} {
			if strings.Contains(reqLower, word) {
				return CategoryPromptIssue
			}
		}
		return CategoryMixed

	case issues.TypeAPIError, issues.TypeTimeout:
		return CategoryCodeBug

	case issues.TypeSimulationError, issues.TypeInvalidCircuit, issues.TypeSyntaxError:
		for _, kw := range codeBugKeywords {
			if strings.Contains(errLower, kw) {
				return CategoryCodeBug
			}
		}
		if strings.Contains(errLower, "singular") || strings.Contains(errLower, "convergence") {
			// A terse request that hit a numerical failure usually means the
			// model was left to invent the topology.
			if len(strings.Fields(request)) < 5 {
				return CategoryPromptIssue
			}
			return CategoryMixed
		}
		if strings.Contains(errLower, "ground") || strings.Contains(errLower, "gnd") {
			return CategoryPromptIssue
		}
		return CategoryMixed
	}
	return CategoryMixed
}

// Analyze triages a single issue.
func (t *Triager) Analyze(issue issues.Issue) Analysis {
	a := Analysis{
		IssueID:   issue.ID,
		IssueType: issue.Type,
		Category:  Categorize(issue.Type, issue.Request, issue.ErrorText),
	}
	a.RootCause, a.Strategy = rootCause(issue)
	t.log.Debug("triaged issue",
		zap.Int64("id", issue.ID),
		zap.String("type", issue.Type),
		zap.String("category", a.Category),
		zap.String("strategy", a.Strategy))
	return a
}

// AnalyzeAll triages a batch.
func (t *Triager) AnalyzeAll(list []issues.Issue) []Analysis {
	out := make([]Analysis, 0, len(list))
	for _, issue := range list {
		out = append(out, t.Analyze(issue))
	}
	return out
}

func rootCause(issue issues.Issue) (string, string) {
	errLower := strings.ToLower(issue.ErrorText)
	switch issue.Type {
	case issues.TypeEmptyOutput:
		return "model returned nothing; request may be unclear or model refused", StrategyImprovePrompt
	case issues.TypeNoCodeBlock:
		return "model answered in prose without a fenced code block", StrategyImprovePrompt
	case issues.TypeAPIError:
		return "provider call failed; key, quota, or connectivity", StrategyInfrastructure
	case issues.TypeTimeout:
		return "run exceeded its deadline; circuit too large or provider slow", StrategyInfrastructure
	case issues.TypeSyntaxError:
		return "repaired source still does not parse; generator emitted malformed code", StrategyImprovePrompt
	case issues.TypeInvalidCircuit:
		return "validation checks failed; required structure missing from generated code", StrategyImprovePrompt
	case issues.TypeSimulationError:
		switch {
		case strings.Contains(errLower, "singular") || strings.Contains(errLower, "convergence"):
			return "circuit likely missing a DC path to ground", StrategyImprovePrompt
		case strings.Contains(errLower, "duplicate declaration") || strings.Contains(errLower, "session busy"):
			return "engine process-lifetime violation; worker restarted too quickly or runs overlapped", StrategyInfrastructure
		case strings.Contains(errLower, "timestep"):
			return "analysis window vastly exceeds the step size", StrategyParameterGuidance
		default:
			return "unclassified engine failure: " + truncate(issue.ErrorText, 100), StrategyReviewNeeded
		}
	}
	return "unrecognized issue type", StrategyReviewNeeded
}

// ImprovedSystemPrompt builds a tightened generator prompt from the observed
// failure mix. The base DSL prompt stays; targeted reinforcement sections
// are appended only for failure types actually seen.
func ImprovedSystemPrompt(list []issues.Issue) string {
	byType := make(map[string]int)
	for _, issue := range list {
		byType[issue.Type]++
	}

	var sections []string
	if byType[issues.TypeEmptyOutput] > 0 || byType[issues.TypeNoCodeBlock] > 0 {
		sections = append(sections, `CRITICAL: always respond with exactly one fenced code block containing circuit code. Never answer with prose alone.`)
	}
	if byType[issues.TypeInvalidCircuit] > 0 || byType[issues.TypeSyntaxError] > 0 {
		sections = append(sections, `STRUCTURE CHECKLIST, every response:
- circuit := NewCircuit("...") present
- every component value carries a unit tag
- at least one node ties to gnd
- the result is assigned to a variable named analysis`)
	}
	if byType[issues.TypeSimulationError] > 0 {
		sections = append(sections, `SIMULATION PRACTICES:
- give every node a DC path to ground
- use realistic component values, never zero
- keep transient steps near a thousandth of the end time
- drive transient analyses with PulseVoltageSource or SinusoidalVoltageSource`)
	}

	if len(sections) == 0 {
		return generate.SystemPrompt
	}
	return generate.SystemPrompt + "\n\n" + strings.Join(sections, "\n\n")
}

// Report renders a human-readable triage summary.
func Report(analyses []Analysis) string {
	if len(analyses) == 0 {
		return "No open issues to triage."
	}

	byCategory := make(map[string]int)
	for _, a := range analyses {
		byCategory[a.Category]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Triage Report\n\nIssues analyzed: %d\n", len(analyses))
	fmt.Fprintf(&b, "Prompt issues: %d, code bugs: %d, mixed: %d\n\n",
		byCategory[CategoryPromptIssue], byCategory[CategoryCodeBug], byCategory[CategoryMixed])
	for _, a := range analyses {
		fmt.Fprintf(&b, "- Issue #%d (%s): %s\n  cause: %s\n  strategy: %s\n",
			a.IssueID, a.IssueType, a.Category, a.RootCause, a.Strategy)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
