package spice

import (
	"errors"
	"math"
	"math/cmplx"
)

var errSingular = errors.New("singular matrix")

const pivotFloor = 1e-14

// solveReal solves a*x = b in place by Gaussian elimination with partial
// pivoting. a and b are clobbered.
func solveReal(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < pivotFloor {
			return nil, errSingular
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// solveComplex is the phasor-domain counterpart of solveReal.
func solveComplex(a [][]complex128, b []complex128) ([]complex128, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if cmplx.Abs(a[row][col]) > cmplx.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if cmplx.Abs(a[pivot][col]) < pivotFloor {
			return nil, errSingular
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}
	x := make([]complex128, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// realSystem is a modified-nodal-analysis system: one unknown per non-ground
// node plus one branch current per voltage source.
type realSystem struct {
	n int // node unknowns
	a [][]float64
	b []float64
}

func newRealSystem(nodes, branches int) *realSystem {
	size := nodes + branches
	a := make([][]float64, size)
	for i := range a {
		a[i] = make([]float64, size)
	}
	return &realSystem{n: nodes, a: a, b: make([]float64, size)}
}

func (s *realSystem) stampConductance(i, j int, g float64) {
	if i >= 0 {
		s.a[i][i] += g
	}
	if j >= 0 {
		s.a[j][j] += g
	}
	if i >= 0 && j >= 0 {
		s.a[i][j] -= g
		s.a[j][i] -= g
	}
}

func (s *realSystem) stampCurrent(i, j int, cur float64) {
	if i >= 0 {
		s.b[i] += cur
	}
	if j >= 0 {
		s.b[j] -= cur
	}
}

func (s *realSystem) stampVoltageSource(branch, i, j int, v float64) {
	row := s.n + branch
	if i >= 0 {
		s.a[row][i] = 1
		s.a[i][row] = 1
	}
	if j >= 0 {
		s.a[row][j] = -1
		s.a[j][row] = -1
	}
	s.b[row] = v
}

type complexSystem struct {
	n int
	a [][]complex128
	b []complex128
}

func newComplexSystem(nodes, branches int) *complexSystem {
	size := nodes + branches
	a := make([][]complex128, size)
	for i := range a {
		a[i] = make([]complex128, size)
	}
	return &complexSystem{n: nodes, a: a, b: make([]complex128, size)}
}

func (s *complexSystem) stampAdmittance(i, j int, y complex128) {
	if i >= 0 {
		s.a[i][i] += y
	}
	if j >= 0 {
		s.a[j][j] += y
	}
	if i >= 0 && j >= 0 {
		s.a[i][j] -= y
		s.a[j][i] -= y
	}
}

func (s *complexSystem) stampVoltageSource(branch, i, j int, v complex128) {
	row := s.n + branch
	if i >= 0 {
		s.a[row][i] = 1
		s.a[i][row] = 1
	}
	if j >= 0 {
		s.a[row][j] = -1
		s.a[j][row] = -1
	}
	s.b[row] = v
}
