// Package repair rewrites generated circuit code before it reaches the
// validator and the engine. It is deliberately textual: the generator's
// mistakes are shallow and recurring, and a line or pattern rewrite fixes
// them without a full parse. Every rule is idempotent so the whole table can
// be re-applied to its own output without changing it.
package repair

import (
	"regexp"
	"strings"
)

// Lines the sanitizer removes. Generated code routinely tries to set its own
// environment up: package clauses, imports of the engine package, explicit
// engine initialization. Inside a long-lived process all of that is done
// exactly once at startup, and doing it again raises a fatal
// duplicate-declaration error from the engine, so these statements are
// stripped rather than executed. Imports of anything else stay: the
// interpreter namespace carries the full standard library, so a generated
// `import "math"` is harmless and removing it would break code that uses it.
var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*package\s+\w+\s*$`),
	engineImportLine,
	regexp.MustCompile(`(?i)^\s*(?:\w+\s*:?=\s*)?(?:spice\.)?(?:must)?initengine\s*\(`),
}

// Engine package paths in any spelling the generator has produced: the real
// path, bare "spice", and the foreign pyspice/ngspice variants.
var (
	engineImportLine   = regexp.MustCompile(`(?i)^\s*import\s+(?:[\w.]+\s+)?"[^"]*spice[^"]*"\s*(?://.*)?$`)
	engineImportMember = regexp.MustCompile(`(?i)^\s*(?:[\w.]+\s+)?"[^"]*spice[^"]*"\s*,?\s*(?://.*)?$`)
)

var importBlockOpen = regexp.MustCompile(`(?i)^\s*import\s*\($`)

// Sanitize strips environment-setup statements from generated source and
// returns the cleaned text along with the removed lines for diagnostics.
// Engine members of an import block are removed individually; the block
// wrapper goes too only when nothing else was in it. Matching is line-based:
// a string literal that merely contains import-like text can misfire, which
// is accepted over paying for a parse here.
func Sanitize(src string) (string, []string) {
	var kept []string
	var removed []string
	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if importBlockOpen.MatchString(strings.TrimRight(line, " \t")) {
			end := i + 1
			for end < len(lines) && strings.TrimSpace(lines[end]) != ")" {
				end++
			}
			blockKept, blockRemoved := splitImportBlock(lines[i : min(end+1, len(lines))])
			kept = append(kept, blockKept...)
			removed = append(removed, blockRemoved...)
			i = end
			continue
		}
		dropped := false
		for _, re := range sanitizePatterns {
			if re.MatchString(line) {
				removed = append(removed, line)
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), removed
}

// splitImportBlock separates an import block's lines into kept and removed.
// block includes the `import (` opener and, when present, the closing `)`.
func splitImportBlock(block []string) (kept, removed []string) {
	onlyEngine := true
	for _, line := range block[1:] {
		if strings.TrimSpace(line) == ")" {
			break
		}
		if strings.TrimSpace(line) != "" && !engineImportMember.MatchString(line) {
			onlyEngine = false
			break
		}
	}
	if onlyEngine {
		return nil, block
	}

	kept = append(kept, block[0])
	for _, line := range block[1:] {
		if engineImportMember.MatchString(line) {
			removed = append(removed, line)
		} else {
			kept = append(kept, line)
		}
	}
	return kept, removed
}
