package spice

import "fmt"

// Unit identifies the physical dimension a Value carries. The engine only
// understands the tags below; anything else is an unknown unit as far as the
// solver is concerned.
type Unit string

const (
	UnitVolt    Unit = "V"
	UnitAmpere  Unit = "A"
	UnitOhm     Unit = "Ohm"
	UnitFarad   Unit = "F"
	UnitHenry   Unit = "H"
	UnitSecond  Unit = "s"
	UnitHertz   Unit = "Hz"
	UnitScalar  Unit = ""
)

// Value is a unit-wrapped number. Component declarations and analysis
// parameters are always unit-annotated; bare floats are rejected at the
// validation stage before the engine ever sees them.
//
// Waveform samples returned by an analysis are also Values. They must be
// coerced with Float before any arithmetic. Value deliberately supports no
// operators, so forgetting the coercion is a compile error in host code
// rather than a silently wrong plot.
type Value struct {
	si   float64 // magnitude in SI base units
	unit Unit
}

// Float returns the magnitude in SI base units (volts, ohms, farads, seconds,
// hertz...). This is the single coercion boundary between unit-wrapped engine
// values and plain numbers.
func (v Value) Float() float64 { return v.si }

// Unit returns the dimension tag.
func (v Value) Unit() Unit { return v.unit }

func (v Value) String() string { return fmt.Sprintf("%g %s", v.si, v.unit) }

// ComplexValue is a unit-wrapped complex number, produced by frequency-domain
// analyses. Like Value it supports no arithmetic; call Complex first.
type ComplexValue struct {
	c    complex128
	unit Unit
}

// Complex returns the plain complex128 in SI base units.
func (v ComplexValue) Complex() complex128 { return v.c }

// Unit returns the dimension tag.
func (v ComplexValue) Unit() Unit { return v.unit }

// VoltPhasor wraps a complex voltage the way frequency sweeps produce them.
func VoltPhasor(c complex128) ComplexValue { return newComplex(c, UnitVolt) }

func newValue(si float64, u Unit) Value { return Value{si: si, unit: u} }

func newComplex(c complex128, u Unit) ComplexValue { return ComplexValue{c: c, unit: u} }

// Unit tag constructors. These are the primitives the sandbox binds into the
// execution namespace under their generator-facing aliases (u_V, u_kOhm, ...).
// The set below is the engine's complete known unit table; tags outside it do
// not exist and are handled by the repair layer's alias table instead.

func Volts(x float64) Value        { return newValue(x, UnitVolt) }
func Millivolts(x float64) Value   { return newValue(x*1e-3, UnitVolt) }
func Amps(x float64) Value         { return newValue(x, UnitAmpere) }
func Milliamps(x float64) Value    { return newValue(x*1e-3, UnitAmpere) }
func Ohms(x float64) Value         { return newValue(x, UnitOhm) }
func KiloOhms(x float64) Value     { return newValue(x*1e3, UnitOhm) }
func Farads(x float64) Value       { return newValue(x, UnitFarad) }
func NanoFarads(x float64) Value   { return newValue(x*1e-9, UnitFarad) }
func PicoFarads(x float64) Value   { return newValue(x*1e-12, UnitFarad) }
func Henries(x float64) Value      { return newValue(x, UnitHenry) }
func MilliHenries(x float64) Value { return newValue(x*1e-3, UnitHenry) }
func Seconds(x float64) Value      { return newValue(x, UnitSecond) }
func Milliseconds(x float64) Value { return newValue(x*1e-3, UnitSecond) }
func Microseconds(x float64) Value { return newValue(x*1e-6, UnitSecond) }
func Hertz(x float64) Value        { return newValue(x, UnitHertz) }
func KiloHertz(x float64) Value    { return newValue(x*1e3, UnitHertz) }
func MegaHertz(x float64) Value    { return newValue(x*1e6, UnitHertz) }
func GigaHertz(x float64) Value    { return newValue(x*1e9, UnitHertz) }
