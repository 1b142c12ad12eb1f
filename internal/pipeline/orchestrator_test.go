package pipeline

import (
	"context"
	"math"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"voltlab/internal/extract"
	"voltlab/internal/repair"
	"voltlab/internal/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newOrchestrator() *Orchestrator {
	return New(nil, repair.Options{ConvertConstantSources: true}, zap.NewNop())
}

// lastSample returns the record with the largest independent value for one
// node.
func lastSample(records []extract.Record, node string) (extract.Record, bool) {
	var best extract.Record
	found := false
	for _, r := range records {
		if r.Node != node {
			continue
		}
		if !found || r.IndependentValue > best.IndependentValue {
			best = r
			found = true
		}
	}
	return best, found
}

// RC circuit driven by a constant source the repair layer converts to a
// step. tau = 10 us, so at 10 ms the output has fully settled.
func TestGoldenTransient(t *testing.T) {
	src := `circuit := NewCircuit("rc")
circuit.V("vin", "n1", gnd, u_V(10))
circuit.R("1", "n1", "n2", u_kOhm(1))
circuit.C("1", "n2", gnd, u_nF(10))
simulator := circuit.Simulator()
analysis := simulator.Transient(u_us(0.1), u_ms(10))
`
	out := newOrchestrator().Run(context.Background(), src)
	if out.Stage != StageDone {
		t.Fatalf("stage = %s (failed at %s): %v", out.Stage, out.FailedAt, out.Err)
	}
	if out.RepairCounts[repair.RuleConstantSource] != 1 {
		t.Errorf("repair counts = %v, want one constant-source conversion reported", out.RepairCounts)
	}
	if len(out.Records) < 2 {
		t.Fatalf("got %d records, want more than one", len(out.Records))
	}
	final, ok := lastSample(out.Records, "n2")
	if !ok {
		t.Fatal("no records for node n2")
	}
	if final.Value == nil {
		t.Fatal("time-domain record has no value")
	}
	if math.Abs(*final.Value-10) > 0.1 {
		t.Errorf("v(n2) at end = %g, want within 1%% of 10", *final.Value)
	}
}

// Low-pass with corner near 1 kHz, swept 1 Hz to 100 kHz. The decade grid
// lands on 1 kHz, where the response is -3 dB and -45 degrees.
func TestGoldenFrequency(t *testing.T) {
	src := `circuit := NewCircuit("low-pass")
circuit.SinusoidalVoltageSource("vin", "n1", gnd, u_V(1))
circuit.R("1", "n1", "out", u_kOhm(1.59))
circuit.C("1", "out", gnd, u_nF(100))
simulator := circuit.Simulator()
analysis := simulator.AC("dec", 20, u_Hz(1), u_kHz(100))
`
	out := newOrchestrator().Run(context.Background(), src)
	if out.Stage != StageDone {
		t.Fatalf("stage = %s (failed at %s): %v", out.Stage, out.FailedAt, out.Err)
	}

	var corner *extract.Record
	for i, r := range out.Records {
		if r.Node == "out" && math.Abs(r.IndependentValue-1000) < 1 {
			corner = &out.Records[i]
			break
		}
	}
	if corner == nil {
		t.Fatal("no record for node out near 1 kHz")
	}
	if corner.MagnitudeDB == nil || corner.PhaseDeg == nil {
		t.Fatal("frequency record missing derived fields")
	}
	if math.Abs(*corner.MagnitudeDB-(-3)) > 0.5 {
		t.Errorf("magnitude at corner = %g dB, want -3 +/- 0.5", *corner.MagnitudeDB)
	}
	if math.Abs(*corner.PhaseDeg-(-45)) > 2 {
		t.Errorf("phase at corner = %g deg, want -45 +/- 2", *corner.PhaseDeg)
	}
}

func TestValidationFailureStopsBeforeEngine(t *testing.T) {
	out := newOrchestrator().Run(context.Background(), "x := 1\n")
	if out.Stage != StageFailed || out.FailedAt != StageValidating {
		t.Fatalf("stage = %s, failed at %s, want failure in validating", out.Stage, out.FailedAt)
	}
	if out.Err == nil || out.Err.Class != ClassValidation {
		t.Fatalf("err = %v, want validation class", out.Err)
	}
	// All violated checks enumerated, not just the first.
	for _, check := range []string{validate.CheckCircuitConstruction, validate.CheckGroundReference} {
		found := false
		for _, d := range []string{out.Err.Summary} {
			if contains(d, check) {
				found = true
			}
		}
		if !found {
			t.Errorf("summary %q missing check %s", out.Err.Summary, check)
		}
	}
	if len(out.Records) != 0 {
		t.Error("failed outcome carries records")
	}
}

func TestSyntaxFailure(t *testing.T) {
	src := `circuit := NewCircuit("rc"
circuit.R("1", "n1", gnd, u_kOhm(1))
analysis := simulator.Transient(u_us(1), u_ms(1))
`
	out := newOrchestrator().Run(context.Background(), src)
	if out.Stage != StageFailed || out.FailedAt != StageExecuting {
		t.Fatalf("stage = %s, failed at %s", out.Stage, out.FailedAt)
	}
	if out.Err.Class != ClassSyntax {
		t.Errorf("class = %s, want syntax", out.Err.Class)
	}
}

func TestEngineRuntimeFailure(t *testing.T) {
	src := `circuit := NewCircuit("captrap")
circuit.V("bias", "n1", gnd, u_V(1))
circuit.C("1", "n1", "mid", u_nF(100))
circuit.C("2", "mid", gnd, u_nF(100))
simulator := circuit.Simulator()
analysis := simulator.AC("oct", 10, u_Hz(1), u_kHz(1))
`
	out := newOrchestrator().Run(context.Background(), src)
	if out.Stage != StageFailed || out.FailedAt != StageExecuting {
		t.Fatalf("stage = %s, failed at %s: %v", out.Stage, out.FailedAt, out.Err)
	}
	if out.Err.Class != ClassEngineRuntime {
		t.Errorf("class = %s, want engine-runtime", out.Err.Class)
	}
	if !contains(out.Err.Summary, "unknown sweep variation") {
		t.Errorf("engine message not passed through verbatim: %q", out.Err.Summary)
	}
}

func TestEmptyResultIsDoneWithHint(t *testing.T) {
	src := `circuit := NewCircuit("noop")
circuit.R("1", "n1", gnd, u_kOhm(1))
circuit.V("vin", "n1", gnd, u_V(1))
simulator := circuit.Simulator()
analysis := simulator.AC("dec", 5, u_Hz(10), u_kHz(1))
analysis = &spice.Analysis{}
`
	out := New(nil, repair.Options{}, nil).Run(context.Background(), src)
	if out.Stage != StageDone {
		t.Fatalf("stage = %s (failed at %s): %v", out.Stage, out.FailedAt, out.Err)
	}
	if len(out.Records) != 0 {
		t.Fatalf("got %d records, want none", len(out.Records))
	}
	if out.Err != nil {
		t.Error("clean empty run carries an error")
	}
	found := false
	for _, d := range out.Diagnostics {
		if contains(d, "no node-signal array matched") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %v, want empty-result hint", out.Diagnostics)
	}
}

// Records are non-empty exactly when no error is present and at least one
// sample existed.
func TestOutcomeExclusivity(t *testing.T) {
	sources := []string{
		"x := 1\n", // validation failure
		`circuit := NewCircuit("rc")
circuit.PulseVoltageSource("vin", "n1", gnd, u_V(0), u_V(5), u_us(1), u_us(1), u_us(1), u_ms(10), u_ms(20))
circuit.R("1", "n1", "n2", u_kOhm(1))
circuit.C("1", "n2", gnd, u_nF(100))
simulator := circuit.Simulator()
analysis := simulator.Transient(u_us(10), u_ms(1))
`, // clean run
	}
	o := newOrchestrator()
	for i, src := range sources {
		out := o.Run(context.Background(), src)
		hasRecords := len(out.Records) > 0
		hasErr := out.Err != nil
		if hasRecords && hasErr {
			t.Errorf("source %d: outcome has both records and an error", i)
		}
		if out.Stage == StageFailed && !hasErr {
			t.Errorf("source %d: failed outcome without error", i)
		}
		if out.Stage == StageDone && hasErr {
			t.Errorf("source %d: done outcome with error", i)
		}
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	o := newOrchestrator()
	a := o.Run(context.Background(), "x := 1\n")
	b := o.Run(context.Background(), "x := 1\n")
	if a.RunID == "" || a.RunID == b.RunID {
		t.Errorf("run ids %q and %q, want distinct non-empty", a.RunID, b.RunID)
	}
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
