package repair

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rule names, used as keys in the applied-rewrite counts.
const (
	RuleDeprecatedConstructor = "deprecated-constructor"
	RuleReservedNodeName      = "reserved-node-name"
	RuleInvalidUnitAlias      = "invalid-unit-alias"
	RuleConstantSource        = "constant-source-in-transient"
)

// Options controls the optional rewrites.
type Options struct {
	// ConvertConstantSources enables the constant-source-in-transient rule.
	// The conversion changes circuit semantics on purpose, so it can be
	// switched off by configuration.
	ConvertConstantSources bool
}

// Result is the repaired source plus a per-rule count of applied rewrites.
// Counts only contains rules that fired at least once.
type Result struct {
	Source string
	Counts map[string]int
}

// The generator was trained on an API revision that still had a short-form
// sinusoidal source constructor.
var deprecatedSineRe = regexp.MustCompile(`(\w+)\.Sinusoidal\(`)

// Host-language keywords that generated code keeps picking as node names.
// Executing such a name as an identifier elsewhere in the snippet breaks the
// parse, so the string literal is rewritten to a disambiguated form at every
// occurrence. "in" is not a keyword but carries a legacy rewrite target from
// before the table was keyword-driven.
var reservedNodeNames = []string{
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type",
	"var",
}

type nodeRewrite struct {
	re   *regexp.Regexp
	repl string
}

var reservedNodeRes = func() []nodeRewrite {
	rs := make([]nodeRewrite, 0, len(reservedNodeNames)+1)
	for _, kw := range reservedNodeNames {
		rs = append(rs, nodeRewrite{regexp.MustCompile(`"` + kw + `"`), `"` + kw + `_node"`})
	}
	return append(rs, nodeRewrite{regexp.MustCompile(`"in"`), `"input_node"`})
}()

// Unit tags the generator invents that are not in the engine's unit table,
// mapped to the nearest tag that exists. The mapping is by name similarity,
// not magnitude; that is the established behavior and changing it would
// silently alter circuits that currently work.
var unitAliases = []struct {
	bad  *regexp.Regexp
	good string
}{
	{regexp.MustCompile(`\bu_uF\(`), "u_nF("},
	{regexp.MustCompile(`\bu_uf\(`), "u_nF("},
	{regexp.MustCompile(`\bu_MOhm\(`), "u_kOhm("},
	{regexp.MustCompile(`\bu_mOhm\(`), "u_Ohm("},
}

var (
	transientTriggerRe = regexp.MustCompile(`(?i)\.transient\s*\(`)
	transientCallRe    = regexp.MustCompile(`(?i)\.transient\s*\(\s*[^,]+,\s*(u_\w+)\(([^)]+)\)\s*\)`)
	constantSrcRe      = regexp.MustCompile(`(\w+)\.V\(\s*([^,]+),\s*([^,]+),\s*([^,]+),\s*(u_\w+\([^)]*\))\s*\)`)
)

// timeUnitScale converts a time unit tag to seconds.
var timeUnitScale = map[string]float64{
	"u_s":  1,
	"u_ms": 1e-3,
	"u_us": 1e-6,
}

// Apply runs the ordered rewrite table over sanitized source. Applying the
// table to its own output is a no-op.
func Apply(src string, opts Options) Result {
	counts := make(map[string]int)
	count := func(rule string, n int) {
		if n > 0 {
			counts[rule] += n
		}
	}

	// 1. deprecated-constructor
	n := len(deprecatedSineRe.FindAllString(src, -1))
	src = deprecatedSineRe.ReplaceAllString(src, "$1.SinusoidalVoltageSource(")
	count(RuleDeprecatedConstructor, n)

	// 2. reserved-node-name
	for _, r := range reservedNodeRes {
		n := len(r.re.FindAllString(src, -1))
		src = r.re.ReplaceAllString(src, r.repl)
		count(RuleReservedNodeName, n)
	}

	// 3. invalid-unit-alias
	for _, a := range unitAliases {
		n := len(a.bad.FindAllString(src, -1))
		src = a.bad.ReplaceAllString(src, a.good)
		count(RuleInvalidUnitAlias, n)
	}

	// 4. constant-source-in-transient. Only fires when a transient analysis
	// is actually requested; a constant source in a frequency sweep is left
	// alone.
	if opts.ConvertConstantSources {
		if window, ok := transientWindow(src); ok {
			n := 0
			src = constantSrcRe.ReplaceAllStringFunc(src, func(match string) string {
				m := constantSrcRe.FindStringSubmatch(match)
				n++
				return pulseDecl(m[1], m[2], m[3], m[4], m[5], window)
			})
			count(RuleConstantSource, n)
		}
	}

	return Result{Source: src, Counts: counts}
}

// transientWindow reports whether the source requests a transient analysis
// and, when the end-time argument is parseable, how long the analysis window
// is in seconds. An unparseable window still counts as transient; the
// conversion then falls back to default timing.
func transientWindow(src string) (float64, bool) {
	if !transientTriggerRe.MatchString(src) {
		return 0, false
	}
	m := transientCallRe.FindStringSubmatch(src)
	if m == nil {
		return 0, true
	}
	scale, ok := timeUnitScale[m[1]]
	if !ok {
		return 0, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
	if err != nil || v <= 0 {
		return 0, true
	}
	return v * scale, true
}

// pulseDecl builds the stepped-source replacement for one constant source:
// same name and node pair, zero initial value, the original amplitude as the
// pulsed level, edges at a thousandth of the analysis window and a width
// that outlasts it.
func pulseDecl(recv, name, np, nm, amplitude string, window float64) string {
	edge := window / 1000
	width := 2 * window
	if window <= 0 {
		edge = 1e-6
		width = 1
	}
	return fmt.Sprintf("%s.PulseVoltageSource(%s, %s, %s, u_V(0), %s, %s, %s, %s, %s, %s)",
		recv, strings.TrimSpace(name), strings.TrimSpace(np), strings.TrimSpace(nm), amplitude,
		ms(edge), ms(edge), ms(edge), ms(width), ms(2*width))
}

func ms(seconds float64) string {
	return fmt.Sprintf("u_ms(%g)", seconds*1e3)
}
