package sandbox

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"voltlab/internal/spice"
)

// Symbols exposes the engine package to interpreted code. The interpreter
// binds these once per namespace; generated code then sees the engine as an
// already-imported package and the prelude aliases its primitives under the
// generator-facing names.
var Symbols = interp.Exports{
	"voltlab/internal/spice/spice": {
		"NewCircuit":     reflect.ValueOf(spice.NewCircuit),
		"Gnd":            reflect.ValueOf(spice.Gnd),
		"InitEngine":     reflect.ValueOf(spice.InitEngine),
		"MustInitEngine": reflect.ValueOf(spice.MustInitEngine),

		"Volts":        reflect.ValueOf(spice.Volts),
		"Millivolts":   reflect.ValueOf(spice.Millivolts),
		"Amps":         reflect.ValueOf(spice.Amps),
		"Milliamps":    reflect.ValueOf(spice.Milliamps),
		"Ohms":         reflect.ValueOf(spice.Ohms),
		"KiloOhms":     reflect.ValueOf(spice.KiloOhms),
		"Farads":       reflect.ValueOf(spice.Farads),
		"NanoFarads":   reflect.ValueOf(spice.NanoFarads),
		"PicoFarads":   reflect.ValueOf(spice.PicoFarads),
		"Henries":      reflect.ValueOf(spice.Henries),
		"MilliHenries": reflect.ValueOf(spice.MilliHenries),
		"Seconds":      reflect.ValueOf(spice.Seconds),
		"Milliseconds": reflect.ValueOf(spice.Milliseconds),
		"Microseconds": reflect.ValueOf(spice.Microseconds),
		"Hertz":        reflect.ValueOf(spice.Hertz),
		"KiloHertz":    reflect.ValueOf(spice.KiloHertz),
		"MegaHertz":    reflect.ValueOf(spice.MegaHertz),
		"GigaHertz":    reflect.ValueOf(spice.GigaHertz),

		"Circuit":       reflect.ValueOf((*spice.Circuit)(nil)),
		"Simulator":     reflect.ValueOf((*spice.Simulator)(nil)),
		"Analysis":      reflect.ValueOf((*spice.Analysis)(nil)),
		"Value":         reflect.ValueOf((*spice.Value)(nil)),
		"ComplexValue":  reflect.ValueOf((*spice.ComplexValue)(nil)),
		"Signal":        reflect.ValueOf((*spice.Signal)(nil)),
		"RealSignal":    reflect.ValueOf((*spice.RealSignal)(nil)),
		"ComplexSignal": reflect.ValueOf((*spice.ComplexSignal)(nil)),
		"SimError":      reflect.ValueOf((*spice.SimError)(nil)),
		"InitError":     reflect.ValueOf((*spice.InitError)(nil)),
	},
}
