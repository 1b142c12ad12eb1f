// Package extract flattens an engine analysis into plain numeric records.
// It is the one place where unit-wrapped engine values are coerced to plain
// floats; everything downstream (serialization, display, persistence) works
// on Records only.
package extract

import (
	"math"
	"sort"

	"voltlab/internal/spice"
)

// Domain values carried by every record.
const (
	DomainTime      = "time"
	DomainFrequency = "frequency"
)

// dbFloor keeps the decibel conversion defined for exact zeros.
const dbFloor = 1e-20

// Record is one sample of one node signal. Time-domain records carry Value;
// frequency-domain records carry the three derived magnitude/phase fields.
type Record struct {
	Domain           string   `json:"domain"`
	IndependentValue float64  `json:"independent_value"`
	Node             string   `json:"node"`
	Value            *float64 `json:"value,omitempty"`
	MagnitudeDB      *float64 `json:"magnitude_db,omitempty"`
	MagnitudeLinear  *float64 `json:"magnitude_linear,omitempty"`
	PhaseDeg         *float64 `json:"phase_deg,omitempty"`
}

// Normalize flattens an analysis into records. The branch is taken on the
// domain the analysis itself declares, not on what the caller asked for;
// after repair the requested analysis and the executed one can differ.
// Node signals whose length does not match the independent axis are skipped.
// A nil result (no axis, or nothing matched) is not an error here; the
// orchestrator decides how to report it.
func Normalize(a *spice.Analysis) []Record {
	if a == nil {
		return nil
	}
	switch {
	case len(a.Time) > 0:
		return normalizeTime(a)
	case len(a.Frequency) > 0:
		return normalizeFrequency(a)
	}
	return nil
}

func sortedNodes(signals map[string]spice.Signal) []string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeTime(a *spice.Analysis) []Record {
	var records []Record
	for _, node := range sortedNodes(a.Nodes) {
		sig, ok := a.Nodes[node].(spice.RealSignal)
		if !ok || sig.Len() != len(a.Time) {
			continue
		}
		for i, t := range a.Time {
			v := sig[i].Float()
			records = append(records, Record{
				Domain:           DomainTime,
				IndependentValue: t.Float(),
				Node:             node,
				Value:            &v,
			})
		}
	}
	return records
}

func normalizeFrequency(a *spice.Analysis) []Record {
	var records []Record
	for _, node := range sortedNodes(a.Nodes) {
		sig, ok := a.Nodes[node].(spice.ComplexSignal)
		if !ok || sig.Len() != len(a.Frequency) {
			continue
		}
		for i, f := range a.Frequency {
			c := sig[i].Complex()
			mag := math.Hypot(real(c), imag(c))
			db := 20 * math.Log10(mag+dbFloor)
			phase := math.Atan2(imag(c), real(c)) * 180 / math.Pi
			magV, dbV, phaseV := mag, db, phase
			records = append(records, Record{
				Domain:           DomainFrequency,
				IndependentValue: f.Float(),
				Node:             node,
				MagnitudeLinear:  &magV,
				MagnitudeDB:      &dbV,
				PhaseDeg:         &phaseV,
			})
		}
	}
	return records
}
