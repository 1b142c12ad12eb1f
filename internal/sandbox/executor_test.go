package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"voltlab/internal/spice"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const transientSource = `circuit := NewCircuit("rc")
circuit.PulseVoltageSource("vin", "n1", gnd, u_V(0), u_V(10), u_us(1), u_us(1), u_us(1), u_ms(100), u_ms(200))
circuit.R("1", "n1", "n2", u_kOhm(1))
circuit.C("1", "n2", gnd, u_nF(100))
simulator := circuit.Simulator()
analysis := simulator.Transient(u_us(10), u_ms(1))
`

func TestExecuteTransient(t *testing.T) {
	analysis, err := New().Execute(context.Background(), transientSource)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(analysis.Time) == 0 {
		t.Fatal("transient run produced no time axis")
	}
	if _, ok := analysis.Nodes["n2"]; !ok {
		t.Errorf("node n2 missing from results, have %d nodes", len(analysis.Nodes))
	}
}

func TestExecuteFrequencySweep(t *testing.T) {
	src := `circuit := NewCircuit("lp")
circuit.SinusoidalVoltageSource("vin", "n1", gnd, u_V(1))
circuit.R("1", "n1", "out", u_kOhm(1))
circuit.C("1", "out", gnd, u_nF(100))
simulator := circuit.Simulator()
analysis := simulator.AC("dec", 10, u_Hz(10), u_kHz(10))
`
	analysis, err := New().Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(analysis.Frequency) == 0 {
		t.Fatal("sweep produced no frequency axis")
	}
	if len(analysis.Time) != 0 {
		t.Error("sweep produced a time axis")
	}
}

func TestExecuteCompileError(t *testing.T) {
	_, err := New().Execute(context.Background(), `circuit := NewCircuit((("rc"`)
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("want *CompileError, got %T: %v", err, err)
	}
	if !strings.Contains(cerr.Source, "NewCircuit") {
		t.Error("CompileError does not carry the offending source")
	}
}

func TestExecuteEngineErrorPassesThrough(t *testing.T) {
	// Two capacitors in series leave the middle node floating at the
	// operating point.
	src := `circuit := NewCircuit("captrap")
circuit.V("vin", "n1", gnd, u_V(1))
circuit.C("1", "n1", "mid", u_nF(100))
circuit.C("2", "mid", gnd, u_nF(100))
simulator := circuit.Simulator()
analysis := simulator.Transient(u_us(10), u_ms(1))
`
	_, err := New().Execute(context.Background(), src)
	var simErr *spice.SimError
	if !errors.As(err, &simErr) {
		t.Fatalf("want *spice.SimError, got %T: %v", err, err)
	}
	if !strings.Contains(simErr.Message, "singular") {
		t.Errorf("engine message not passed through: %q", simErr.Message)
	}
}

func TestExecuteReinitFailsLoudly(t *testing.T) {
	spice.TeardownEngine()
	defer spice.TeardownEngine()
	src := `InitEngine()
InitEngine()
`
	_, err := New().Execute(context.Background(), src)
	var initErr *spice.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("want *spice.InitError, got %T: %v", err, err)
	}
}

func TestExecuteNoAnalysis(t *testing.T) {
	_, err := New().Execute(context.Background(), `circuit := NewCircuit("empty")`)
	if !errors.Is(err, ErrNoAnalysis) {
		t.Fatalf("want ErrNoAnalysis, got %v", err)
	}
}

func TestExecuteWrongAnalysisType(t *testing.T) {
	_, err := New().Execute(context.Background(), `analysis := 42`)
	if !errors.Is(err, ErrNoAnalysis) {
		t.Fatalf("want ErrNoAnalysis, got %v", err)
	}
}

func TestNamespaceIsNotReused(t *testing.T) {
	e := New()
	if _, err := e.Execute(context.Background(), `leftover := 1
`+transientSource); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// A later run must not see bindings from an earlier one.
	_, err := e.Execute(context.Background(), `analysis := leftover`)
	if err == nil {
		t.Fatal("second run saw a binding from the first run's namespace")
	}
}

func TestExecuteTimeout(t *testing.T) {
	src := `total := 0
for i := 0; i < 200000; i++ {
	total += i
}
` + transientSource
	_, err := NewWithTimeout(time.Millisecond).Execute(context.Background(), src)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	// Let the abandoned goroutine wind down before goleak checks.
	time.Sleep(3 * time.Second)
}
