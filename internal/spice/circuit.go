package spice

import (
	"fmt"
	"math"
)

// Gnd is the ground node. Generated code references it through the `gnd`
// binding in the execution namespace.
const Gnd = "0"

type sourceKind int

const (
	sourceDC sourceKind = iota
	sourcePulse
	sourceSine
)

type element struct {
	kind byte // 'R', 'C', 'L', 'V'
	name string
	np   string
	nm   string
	val  float64 // ohms, farads, henries; unused for sources
	src  *sourceSpec
}

type sourceSpec struct {
	kind    sourceKind
	dc      float64 // DC level, or amplitude for pulse/sine
	initial float64
	delay   float64
	rise    float64
	fall    float64
	width   float64
	period  float64
	freq    float64 // sine only
}

// Circuit is a netlist under construction. Component declarations are
// recorded in order; nothing is solved until an analysis runs.
type Circuit struct {
	Name string

	elements  []element
	nodeOrder []string
	nodeIndex map[string]int
	hasGround bool
}

// NewCircuit creates an empty circuit. The engine session itself is acquired
// at analysis time, not here.
func NewCircuit(name string) *Circuit {
	return &Circuit{Name: name, nodeIndex: make(map[string]int)}
}

func isGround(node string) bool {
	switch node {
	case "0", "", "gnd", "GND":
		return true
	}
	return false
}

func (c *Circuit) node(name string) int {
	if isGround(name) {
		c.hasGround = true
		return -1
	}
	if idx, ok := c.nodeIndex[name]; ok {
		return idx
	}
	idx := len(c.nodeOrder)
	c.nodeOrder = append(c.nodeOrder, name)
	c.nodeIndex[name] = idx
	return idx
}

func (c *Circuit) add(e element) {
	c.node(e.np)
	c.node(e.nm)
	c.elements = append(c.elements, e)
}

// Nodes returns the non-ground node names in declaration order.
func (c *Circuit) Nodes() []string {
	out := make([]string, len(c.nodeOrder))
	copy(out, c.nodeOrder)
	return out
}

// R declares a resistor between np and nm.
func (c *Circuit) R(name, np, nm string, r Value) {
	c.add(element{kind: 'R', name: "R" + name, np: np, nm: nm, val: r.Float()})
}

// C declares a capacitor between np and nm.
func (c *Circuit) C(name, np, nm string, f Value) {
	c.add(element{kind: 'C', name: "C" + name, np: np, nm: nm, val: f.Float()})
}

// L declares an inductor between np and nm.
func (c *Circuit) L(name, np, nm string, h Value) {
	c.add(element{kind: 'L', name: "L" + name, np: np, nm: nm, val: h.Float()})
}

// V declares a constant (non-time-varying) voltage source. In a transient
// analysis a constant source settles the reactive elements into their
// operating point before the solve begins; the repair layer rewrites such
// declarations to PulseVoltageSource when a transient is requested.
func (c *Circuit) V(name, np, nm string, dc Value) {
	c.add(element{kind: 'V', name: "V" + name, np: np, nm: nm,
		src: &sourceSpec{kind: sourceDC, dc: dc.Float()}})
}

// PulseVoltageSource declares a stepped excitation source. Parameter order:
// initial value, pulsed value, delay, rise time, fall time, pulse width,
// period.
func (c *Circuit) PulseVoltageSource(name, np, nm string, initial, pulsed, delay, rise, fall, width, period Value) {
	c.add(element{kind: 'V', name: "V" + name, np: np, nm: nm,
		src: &sourceSpec{
			kind:    sourcePulse,
			initial: initial.Float(),
			dc:      pulsed.Float(),
			delay:   delay.Float(),
			rise:    rise.Float(),
			fall:    fall.Float(),
			width:   width.Float(),
			period:  period.Float(),
		}})
}

// SinusoidalVoltageSource declares a sinusoidal source. The optional trailing
// value is the oscillation frequency for time-domain runs (default 1 kHz); in
// a frequency sweep the source contributes its amplitude as the excitation
// magnitude regardless of that frequency.
func (c *Circuit) SinusoidalVoltageSource(name, np, nm string, amplitude Value, opts ...Value) {
	freq := 1e3
	if len(opts) > 0 {
		freq = opts[0].Float()
	}
	c.add(element{kind: 'V', name: "V" + name, np: np, nm: nm,
		src: &sourceSpec{kind: sourceSine, dc: amplitude.Float(), freq: freq}})
}

// Simulator returns an analysis runner for the circuit as declared so far.
func (c *Circuit) Simulator() *Simulator {
	return &Simulator{circuit: c}
}

func (c *Circuit) String() string {
	return fmt.Sprintf("Circuit(%s: %d elements, %d nodes)", c.Name, len(c.elements), len(c.nodeOrder))
}

// sourceAt evaluates a source waveform at time t.
func (s *sourceSpec) sourceAt(t float64) float64 {
	switch s.kind {
	case sourceDC:
		return s.dc
	case sourceSine:
		return s.dc * sineAt(t, s.freq)
	case sourcePulse:
		return s.pulseAt(t)
	}
	return 0
}

func (s *sourceSpec) pulseAt(t float64) float64 {
	if s.period > 0 && t >= s.period {
		t = math.Mod(t, s.period)
	}
	switch {
	case t < s.delay:
		return s.initial
	case t < s.delay+s.rise:
		if s.rise <= 0 {
			return s.dc
		}
		return s.initial + (s.dc-s.initial)*(t-s.delay)/s.rise
	case t < s.delay+s.rise+s.width:
		return s.dc
	case t < s.delay+s.rise+s.width+s.fall:
		if s.fall <= 0 {
			return s.initial
		}
		return s.dc + (s.initial-s.dc)*(t-s.delay-s.rise-s.width)/s.fall
	default:
		return s.initial
	}
}

// acMagnitude is the source's contribution to a frequency sweep: sinusoidal
// sources excite with their amplitude, constant and stepped sources do not
// excite at all.
func (s *sourceSpec) acMagnitude() float64 {
	if s.kind == sourceSine {
		return s.dc
	}
	return 0
}
