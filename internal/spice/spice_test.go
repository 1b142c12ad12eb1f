package spice

import (
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"
)

func expectSimError(t *testing.T, wantSub string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected *SimError panic containing %q, got none", wantSub)
		}
		se, ok := r.(*SimError)
		if !ok {
			t.Fatalf("expected *SimError, got %T: %v", r, r)
		}
		if !strings.Contains(se.Message, wantSub) {
			t.Errorf("SimError message %q does not contain %q", se.Message, wantSub)
		}
	}()
	fn()
}

func TestValueCoercion(t *testing.T) {
	cases := []struct {
		got  Value
		si   float64
		unit Unit
	}{
		{Volts(10), 10, UnitVolt},
		{Millivolts(250), 0.25, UnitVolt},
		{KiloOhms(4.7), 4700, UnitOhm},
		{NanoFarads(100), 100e-9, UnitFarad},
		{PicoFarads(22), 22e-12, UnitFarad},
		{MilliHenries(10), 0.01, UnitHenry},
		{Microseconds(5), 5e-6, UnitSecond},
		{KiloHertz(100), 1e5, UnitHertz},
	}
	for _, c := range cases {
		if math.Abs(c.got.Float()-c.si) > 1e-15*math.Abs(c.si) {
			t.Errorf("%s: Float() = %g, want %g", c.got, c.got.Float(), c.si)
		}
		if c.got.Unit() != c.unit {
			t.Errorf("%s: Unit() = %q, want %q", c.got, c.got.Unit(), c.unit)
		}
	}
}

// A periodic pulse must evaluate identically in any period, including
// thousands of periods in, where the time is reduced by modulo rather than
// by walking period-by-period.
func TestPulsePeriodicFarFromOrigin(t *testing.T) {
	src := &sourceSpec{
		kind:    sourcePulse,
		initial: 0,
		dc:      5,
		rise:    1e-7,
		fall:    1e-7,
		width:   4e-7,
		period:  1e-6,
	}
	for _, off := range []float64{0, 2.5e-7, 7.5e-7} {
		early := src.pulseAt(off)
		late := src.pulseAt(off + 1e4*src.period)
		if math.Abs(early-late) > 1e-3 {
			t.Errorf("pulseAt(%g) = %g but pulseAt(%g) = %g", off, early, off+1e4*src.period, late)
		}
	}
}

// A resistive divider has a closed-form answer at every time point, so it
// pins down both the operating point and the stepped solve.
func TestTransientResistiveDivider(t *testing.T) {
	c := NewCircuit("divider")
	c.V("input", "in", Gnd, Volts(10))
	c.R("1", "in", "out", KiloOhms(1))
	c.R("2", "out", Gnd, KiloOhms(1))

	analysis := c.Simulator().Transient(Microseconds(10), Milliseconds(1))
	sig, ok := analysis.Nodes["out"].(RealSignal)
	if !ok {
		t.Fatalf("node out: want RealSignal, got %T", analysis.Nodes["out"])
	}
	if len(analysis.Time) != sig.Len() {
		t.Fatalf("time axis has %d points, signal has %d", len(analysis.Time), sig.Len())
	}
	for i, v := range sig {
		if math.Abs(v.Float()-5) > 1e-9 {
			t.Fatalf("sample %d: v(out) = %g, want 5", i, v.Float())
		}
	}
}

// RC charging through a pulse source. tau = 1 ms, so after 5 tau the output
// sits within a percent of the pulsed level.
func TestTransientRCCharge(t *testing.T) {
	c := NewCircuit("rc")
	c.PulseVoltageSource("input", "in", Gnd,
		Volts(0), Volts(10),
		Microseconds(1), Microseconds(1), Microseconds(1),
		Milliseconds(100), Milliseconds(200))
	c.R("1", "in", "out", KiloOhms(1))
	c.C("1", "out", Gnd, Farads(1e-6))

	analysis := c.Simulator().Transient(Microseconds(10), Milliseconds(5))
	sig := analysis.Nodes["out"].(RealSignal)

	if got := sig[0].Float(); math.Abs(got) > 1e-9 {
		t.Errorf("v(out) at t=0 = %g, want 0", got)
	}
	final := sig[sig.Len()-1].Float()
	if final < 9.8 || final > 10.0001 {
		t.Errorf("v(out) at t=5ms = %g, want ~10 (within 2%% of settled)", final)
	}
	// Monotonic charge, no ringing in a first-order circuit.
	for i := 1; i < sig.Len(); i++ {
		if sig[i].Float() < sig[i-1].Float()-1e-9 {
			t.Fatalf("sample %d: charge curve decreased, %g -> %g", i, sig[i-1].Float(), sig[i].Float())
		}
	}
}

// A constant source with the operating point taken at t=0 yields a flat
// transient: the capacitor is already charged before the first step. This is
// the behavior the repair layer's pulse conversion exists to paper over.
func TestTransientConstantSourceIsFlat(t *testing.T) {
	c := NewCircuit("flat")
	c.V("input", "in", Gnd, Volts(10))
	c.R("1", "in", "out", KiloOhms(1))
	c.C("1", "out", Gnd, Farads(1e-6))

	analysis := c.Simulator().Transient(Microseconds(10), Milliseconds(2))
	sig := analysis.Nodes["out"].(RealSignal)
	for i, v := range sig {
		if math.Abs(v.Float()-10) > 1e-6 {
			t.Fatalf("sample %d: v(out) = %g, want flat 10", i, v.Float())
		}
	}
}

func TestTransientInductorSettles(t *testing.T) {
	c := NewCircuit("rl")
	c.PulseVoltageSource("input", "in", Gnd,
		Volts(0), Volts(1),
		Microseconds(0), Microseconds(1), Microseconds(1),
		Milliseconds(100), Milliseconds(200))
	c.R("1", "in", "out", Ohms(100))
	c.L("1", "out", Gnd, MilliHenries(10))

	// tau = L/R = 100 us; after 2 ms the inductor is a short.
	analysis := c.Simulator().Transient(Microseconds(1), Milliseconds(2))
	sig := analysis.Nodes["out"].(RealSignal)
	final := sig[sig.Len()-1].Float()
	if math.Abs(final) > 0.01 {
		t.Errorf("v(out) at t=2ms = %g, want ~0 (inductor fully conducting)", final)
	}
}

func TestTransientNoGround(t *testing.T) {
	c := NewCircuit("floating")
	c.V("input", "a", "b", Volts(1))
	c.R("1", "a", "b", KiloOhms(1))
	expectSimError(t, "no ground reference", func() {
		c.Simulator().Transient(Microseconds(10), Milliseconds(1))
	})
}

func TestTransientSingular(t *testing.T) {
	// Node mid floats at the operating point: capacitors open, nothing else
	// attached.
	c := NewCircuit("captrap")
	c.V("input", "in", Gnd, Volts(1))
	c.C("1", "in", "mid", Farads(1e-6))
	c.C("2", "mid", Gnd, Farads(1e-6))
	expectSimError(t, "singular matrix", func() {
		c.Simulator().Transient(Microseconds(10), Milliseconds(1))
	})
}

func TestTransientStepLimit(t *testing.T) {
	c := NewCircuit("tiny-step")
	c.V("input", "in", Gnd, Volts(1))
	c.R("1", "in", Gnd, KiloOhms(1))
	expectSimError(t, "timestep too small", func() {
		c.Simulator().Transient(Seconds(1e-9), Seconds(1))
	})
}

func TestTransientBadWindow(t *testing.T) {
	c := NewCircuit("bad-window")
	c.V("input", "in", Gnd, Volts(1))
	c.R("1", "in", Gnd, KiloOhms(1))
	expectSimError(t, "step time must be positive", func() {
		c.Simulator().Transient(Seconds(0), Seconds(1))
	})
	expectSimError(t, "end time must be positive", func() {
		c.Simulator().Transient(Microseconds(1), Seconds(0))
	})
}

// First-order low-pass with f_c = 1 kHz. The decade sweep from 1 Hz at 20
// points per decade lands exactly on 1 kHz, where the response is -3.01 dB
// at -45 degrees.
func TestACLowPass(t *testing.T) {
	c := NewCircuit("low-pass")
	c.SinusoidalVoltageSource("input", "in", Gnd, Volts(1))
	c.R("1", "in", "out", KiloOhms(1))
	c.C("1", "out", Gnd, Farads(1/(2*math.Pi*1000*1000)))

	analysis := c.Simulator().AC("dec", 20, Hertz(1), KiloHertz(100))
	if analysis.Time != nil {
		t.Fatal("AC analysis populated the time axis")
	}
	sig, ok := analysis.Nodes["out"].(ComplexSignal)
	if !ok {
		t.Fatalf("node out: want ComplexSignal, got %T", analysis.Nodes["out"])
	}
	if len(analysis.Frequency) != sig.Len() {
		t.Fatalf("frequency axis has %d points, signal has %d", len(analysis.Frequency), sig.Len())
	}

	cutoff := -1
	for i, f := range analysis.Frequency {
		if math.Abs(f.Float()-1000) < 1e-6 {
			cutoff = i
			break
		}
	}
	if cutoff < 0 {
		t.Fatal("decade sweep from 1 Hz did not land on 1 kHz")
	}
	h := sig[cutoff].Complex()
	db := 20 * math.Log10(cmplx.Abs(h))
	if math.Abs(db-(-20*math.Log10(math.Sqrt2))) > 0.01 {
		t.Errorf("gain at cutoff = %.3f dB, want -3.01 dB", db)
	}
	phase := math.Atan2(imag(h), real(h)) * 180 / math.Pi
	if math.Abs(phase-(-45)) > 0.1 {
		t.Errorf("phase at cutoff = %.2f deg, want -45 deg", phase)
	}

	// Passband is flat, stopband rolls off 20 dB per decade.
	low := cmplx.Abs(sig[0].Complex())
	if math.Abs(low-1) > 1e-3 {
		t.Errorf("gain at 1 Hz = %g, want ~1", low)
	}
	last := analysis.Frequency[sig.Len()-1].Float()
	want := 1000 / last
	if got := cmplx.Abs(sig[sig.Len()-1].Complex()); math.Abs(got-want)/want > 0.01 {
		t.Errorf("gain at %g Hz = %g, want ~%g", last, got, want)
	}
}

func TestACLinearSweep(t *testing.T) {
	c := NewCircuit("lin")
	c.SinusoidalVoltageSource("input", "in", Gnd, Volts(2))
	c.R("1", "in", "out", KiloOhms(1))
	c.R("2", "out", Gnd, KiloOhms(1))

	analysis := c.Simulator().AC("lin", 11, Hertz(100), KiloHertz(1))
	if got := len(analysis.Frequency); got != 11 {
		t.Fatalf("linear sweep produced %d points, want 11", got)
	}
	if f := analysis.Frequency[0].Float(); math.Abs(f-100) > 1e-9 {
		t.Errorf("first point = %g Hz, want 100", f)
	}
	if f := analysis.Frequency[10].Float(); math.Abs(f-1000) > 1e-9 {
		t.Errorf("last point = %g Hz, want 1000", f)
	}
	sig := analysis.Nodes["out"].(ComplexSignal)
	for i, v := range sig {
		if math.Abs(cmplx.Abs(v.Complex())-1) > 1e-9 {
			t.Fatalf("point %d: divider gain = %g, want 1 (half of 2 V)", i, cmplx.Abs(v.Complex()))
		}
	}
}

func TestACQuietSources(t *testing.T) {
	// Constant and pulse sources do not excite a frequency sweep.
	c := NewCircuit("quiet")
	c.V("bias", "in", Gnd, Volts(5))
	c.R("1", "in", "out", KiloOhms(1))
	c.R("2", "out", Gnd, KiloOhms(1))

	analysis := c.Simulator().AC("dec", 10, Hertz(10), KiloHertz(10))
	sig := analysis.Nodes["out"].(ComplexSignal)
	for i, v := range sig {
		if cmplx.Abs(v.Complex()) > 1e-12 {
			t.Fatalf("point %d: quiet circuit produced %g", i, cmplx.Abs(v.Complex()))
		}
	}
}

func TestACBadSweep(t *testing.T) {
	c := NewCircuit("bad-sweep")
	c.SinusoidalVoltageSource("input", "in", Gnd, Volts(1))
	c.R("1", "in", Gnd, KiloOhms(1))
	expectSimError(t, "unknown sweep variation", func() {
		c.Simulator().AC("oct", 10, Hertz(1), KiloHertz(1))
	})
	expectSimError(t, "must be positive", func() {
		c.Simulator().AC("dec", 10, Hertz(0), KiloHertz(1))
	})
	expectSimError(t, "below start frequency", func() {
		c.Simulator().AC("dec", 10, KiloHertz(1), Hertz(1))
	})
}

func TestSessionLifecycle(t *testing.T) {
	TeardownEngine()
	defer TeardownEngine()

	if err := InitEngine(); err != nil {
		t.Fatalf("first InitEngine: %v", err)
	}
	err := InitEngine()
	if err == nil {
		t.Fatal("second InitEngine succeeded, want duplicate-declaration error")
	}
	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("second InitEngine: want *InitError, got %T", err)
	}

	release, err := AcquireRun()
	if err != nil {
		t.Fatalf("AcquireRun: %v", err)
	}
	if _, err := AcquireRun(); err == nil {
		t.Fatal("concurrent AcquireRun succeeded, want busy error")
	}
	release()
	release2, err := AcquireRun()
	if err != nil {
		t.Fatalf("AcquireRun after release: %v", err)
	}
	release2()
}

func TestMustInitEnginePanics(t *testing.T) {
	TeardownEngine()
	defer TeardownEngine()
	MustInitEngine()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("second MustInitEngine did not panic")
		} else if _, ok := r.(*InitError); !ok {
			t.Fatalf("panic value is %T, want *InitError", r)
		}
	}()
	MustInitEngine()
}
