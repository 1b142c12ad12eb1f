// Package validate decides whether repaired circuit code is worth handing to
// the engine at all. The checks are pure text inspection over a single pass
// of the source; nothing here touches the engine.
package validate

import (
	"regexp"
	"strings"
)

// Check names, reported in Verdict.Violations.
const (
	CheckCircuitConstruction = "circuit-construction"
	CheckAnalysisAssignment  = "analysis-assignment"
	CheckUnitAnnotation      = "unit-annotated-literal"
	CheckGroundReference     = "ground-reference"
)

// Verdict is the outcome of static validation. Every violated check is
// listed, not just the first, so one pass yields a complete diagnostic.
type Verdict struct {
	OK         bool
	Violations []string
}

var (
	circuitRe  = regexp.MustCompile(`\bcircuit\s*:?=\s*NewCircuit\s*\(`)
	analysisRe = regexp.MustCompile(`\banalysis\s*:?=`)
	runCallRe  = regexp.MustCompile(`\.(Transient|AC)\s*\(`)
	unitRe     = regexp.MustCompile(`\bu_\w+\s*\(`)
	groundRe   = regexp.MustCompile(`\bgnd\b`)
)

// analysisWindow is how many lines after the analysis assignment the
// Transient or AC call may appear on, for generators that split the chain
// across continuation lines.
const analysisWindow = 5

// Validate runs every check against the repaired source and returns the full
// list of violations. Comments are stripped before matching so that a
// mention of the analysis variable in a comment cannot satisfy a check.
func Validate(src string) Verdict {
	lines := strings.Split(src, "\n")
	stripped := make([]string, len(lines))
	for i, line := range lines {
		stripped[i] = stripComment(line)
	}
	code := strings.Join(stripped, "\n")

	var violations []string
	if !circuitRe.MatchString(code) {
		violations = append(violations, CheckCircuitConstruction)
	}
	if !hasAnalysisAssignment(stripped) {
		violations = append(violations, CheckAnalysisAssignment)
	}
	if !unitRe.MatchString(code) {
		violations = append(violations, CheckUnitAnnotation)
	}
	if !groundRe.MatchString(code) {
		violations = append(violations, CheckGroundReference)
	}
	return Verdict{OK: len(violations) == 0, Violations: violations}
}

// hasAnalysisAssignment wants an actual assignment to the analysis variable
// with a simulation call on the same line or within the next few lines. The
// word "analysis" appearing anywhere else does not count.
func hasAnalysisAssignment(lines []string) bool {
	for i, line := range lines {
		if !analysisRe.MatchString(line) {
			continue
		}
		end := i + analysisWindow
		if end > len(lines) {
			end = len(lines)
		}
		for _, l := range lines[i:end] {
			if runCallRe.MatchString(l) {
				return true
			}
		}
	}
	return false
}

func stripComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}
