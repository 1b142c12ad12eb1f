package spice

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// maxSweepPoints bounds the number of frequency points in a single sweep.
const maxSweepPoints = 100_000

// AC runs a small-signal frequency sweep. variation is "dec" (points per
// decade) or "lin" (total points). Sinusoidal sources excite the circuit
// with their amplitude; every other source is quiet.
func (s *Simulator) AC(variation string, points int, start, stop Value) *Analysis {
	release, err := AcquireRun()
	if err != nil {
		panic(err)
	}
	defer release()

	c := s.circuit
	f0 := start.Float()
	f1 := stop.Float()
	if f0 <= 0 || f1 <= 0 {
		panic(simErrorf("ac", "sweep frequencies must be positive, got %g to %g", f0, f1))
	}
	if f1 < f0 {
		panic(simErrorf("ac", "stop frequency %g is below start frequency %g", f1, f0))
	}
	if points <= 0 {
		panic(simErrorf("ac", "point count must be positive, got %d", points))
	}
	if !c.hasGround {
		panic(simErrorf("ac", "circuit has no ground reference; connect at least one element to gnd"))
	}

	var freqs []float64
	switch variation {
	case "dec":
		decades := math.Log10(f1 / f0)
		total := int(math.Ceil(decades*float64(points))) + 1
		if total > maxSweepPoints {
			panic(simErrorf("ac", "sweep too dense: %d points requested, limit is %d", total, maxSweepPoints))
		}
		for i := 0; i < total; i++ {
			f := f0 * math.Pow(10, float64(i)/float64(points))
			if f > f1*(1+1e-12) {
				break
			}
			freqs = append(freqs, f)
		}
	case "lin":
		if points > maxSweepPoints {
			panic(simErrorf("ac", "sweep too dense: %d points requested, limit is %d", points, maxSweepPoints))
		}
		if points == 1 {
			freqs = []float64{f0}
		} else {
			for i := 0; i < points; i++ {
				freqs = append(freqs, f0+(f1-f0)*float64(i)/float64(points-1))
			}
		}
	default:
		panic(simErrorf("ac", "unknown sweep variation %q, want \"dec\" or \"lin\"", variation))
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

	// Every frequency point is an independent solve, so the sweep fans out
	// across cores.
	results := make([][]complex128, len(freqs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, f := range freqs {
		k, f := k, f
		g.Go(func() error {
			omega := 2 * math.Pi * f
			sys := newComplexSystem(nNodes, branches)
			for idx, e := range c.elements {
				i := nodeIdx(c, e.np)
				j := nodeIdx(c, e.nm)
				switch e.kind {
				case 'R':
					sys.stampAdmittance(i, j, complex(1/e.val, 0))
				case 'C':
					sys.stampAdmittance(i, j, complex(0, omega*e.val))
				case 'L':
					sys.stampAdmittance(i, j, complex(0, -1/(omega*e.val)))
				case 'V':
					sys.stampVoltageSource(branchOf[idx], i, j, complex(e.src.acMagnitude(), 0))
				}
			}
			x, err := solveComplex(sys.a, sys.b)
			if err != nil {
				return simErrorf("ac", "singular matrix at %g Hz; check that the circuit has a path to ground", f)
			}
			results[k] = x[:nNodes]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}

	axis := make([]Value, len(freqs))
	for i, f := range freqs {
		axis[i] = newValue(f, UnitHertz)
	}
	nodes := make(map[string]Signal, nNodes)
	for name, idx := range c.nodeIndex {
		sig := make(ComplexSignal, len(results))
		for k, row := range results {
			sig[k] = newComplex(row[idx], UnitVolt)
		}
		nodes[name] = sig
	}
	return &Analysis{Frequency: axis, Nodes: nodes}
}
