package spice

// Signal is a per-node result vector. Time-domain runs produce RealSignal,
// frequency sweeps produce ComplexSignal.
type Signal interface {
	Len() int
}

// RealSignal holds one voltage sample per time point.
type RealSignal []Value

func (s RealSignal) Len() int { return len(s) }

// ComplexSignal holds one phasor per sweep point.
type ComplexSignal []ComplexValue

func (s ComplexSignal) Len() int { return len(s) }

// Analysis is the result of a simulator run. Exactly one of Time or
// Frequency is populated, and every entry of Nodes has the same length as
// that axis.
type Analysis struct {
	Time      []Value
	Frequency []Value
	Nodes     map[string]Signal
}

// Simulator runs analyses against a declared circuit. Each run acquires the
// engine session for its duration.
type Simulator struct {
	circuit *Circuit
}
