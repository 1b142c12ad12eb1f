package spice

import "math"

// maxTransientSteps bounds the number of solver iterations a single run may
// request, mirroring the step limit of batch SPICE engines.
const maxTransientSteps = 2_000_000

func sineAt(t, f float64) float64 {
	return math.Sin(2 * math.Pi * f * t)
}

// shortG approximates an inductor at the DC operating point.
const shortG = 1e9

// Transient runs a time-domain analysis with fixed step size using backward
// Euler integration. The first sample is the t=0 operating point. Failures
// surface as a *SimError panic, which the sandbox boundary converts back
// into an error.
func (s *Simulator) Transient(step, stop Value) *Analysis {
	release, err := AcquireRun()
	if err != nil {
		panic(err)
	}
	defer release()

	c := s.circuit
	h := step.Float()
	end := stop.Float()
	if h <= 0 {
		panic(simErrorf("transient", "step time must be positive, got %g", h))
	}
	if end <= 0 {
		panic(simErrorf("transient", "end time must be positive, got %g", end))
	}
	if !c.hasGround {
		panic(simErrorf("transient", "circuit has no ground reference; connect at least one element to gnd"))
	}
	steps := int(math.Ceil(end / h))
	if steps > maxTransientSteps {
		panic(simErrorf("transient", "timestep too small: %d steps requested, limit is %d", steps, maxTransientSteps))
	}

	branches := 0
	branchOf := make(map[int]int)
	for idx, e := range c.elements {
		if e.kind == 'V' {
			branchOf[idx] = branches
			branches++
		}
	}
	nNodes := len(c.nodeOrder)

	vPrev := make([]float64, nNodes)
	iL := make([]float64, len(c.elements))

	stampAt := func(sys *realSystem, t float64, dc bool) {
		for idx, e := range c.elements {
			i := nodeIdx(c, e.np)
			j := nodeIdx(c, e.nm)
			switch e.kind {
			case 'R':
				sys.stampConductance(i, j, 1/e.val)
			case 'C':
				if !dc {
					g := e.val / h
					sys.stampConductance(i, j, g)
					sys.stampCurrent(i, j, g*(nodeV(vPrev, i)-nodeV(vPrev, j)))
				}
			case 'L':
				if dc {
					sys.stampConductance(i, j, shortG)
				} else {
					sys.stampConductance(i, j, h/e.val)
					sys.stampCurrent(i, j, -iL[idx])
				}
			case 'V':
				sys.stampVoltageSource(branchOf[idx], i, j, e.src.sourceAt(t))
			}
		}
	}

	solveStep := func(t float64, dc bool) []float64 {
		sys := newRealSystem(nNodes, branches)
		stampAt(sys, t, dc)
		x, err := solveReal(sys.a, sys.b)
		if err != nil {
			panic(simErrorf("transient", "singular matrix at t=%g; check that the circuit has a path to ground", t))
		}
		return x
	}

	updateState := func(x []float64) {
		copy(vPrev, x[:nNodes])
		for idx, e := range c.elements {
			if e.kind != 'L' {
				continue
			}
			i := nodeIdx(c, e.np)
			j := nodeIdx(c, e.nm)
			iL[idx] += (h / e.val) * (nodeV(vPrev, i) - nodeV(vPrev, j))
		}
	}

	// Operating point at t=0: capacitors open, inductors near-short.
	x0 := solveStep(0, true)
	copy(vPrev, x0[:nNodes])
	for idx, e := range c.elements {
		if e.kind != 'L' {
			continue
		}
		i := nodeIdx(c, e.np)
		j := nodeIdx(c, e.nm)
		iL[idx] = shortG * (nodeV(vPrev, i) - nodeV(vPrev, j))
	}

	times := make([]Value, 0, steps+1)
	samples := make([][]float64, 0, steps+1)
	times = append(times, newValue(0, UnitSecond))
	snap := make([]float64, nNodes)
	copy(snap, vPrev)
	samples = append(samples, snap)

	for k := 1; k <= steps; k++ {
		t := float64(k) * h
		x := solveStep(t, false)
		updateState(x)
		times = append(times, newValue(t, UnitSecond))
		snap := make([]float64, nNodes)
		copy(snap, vPrev)
		samples = append(samples, snap)
	}

	nodes := make(map[string]Signal, nNodes)
	for name, idx := range c.nodeIndex {
		sig := make(RealSignal, len(samples))
		for k, row := range samples {
			sig[k] = newValue(row[idx], UnitVolt)
		}
		nodes[name] = sig
	}
	return &Analysis{Time: times, Nodes: nodes}
}

func nodeIdx(c *Circuit, name string) int {
	if isGround(name) {
		return -1
	}
	return c.nodeIndex[name]
}

func nodeV(v []float64, idx int) float64 {
	if idx < 0 {
		return 0
	}
	return v[idx]
}
