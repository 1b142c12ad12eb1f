// Package sandbox executes repaired circuit code inside a fresh Yaegi
// interpreter whose namespace is pre-populated with the engine's primitives.
// Interpreting instead of compiling keeps generated code from touching the
// build toolchain at all: no go build hangs, no dependency resolution, no
// binaries on disk.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"voltlab/internal/spice"
)

// prelude is evaluated in every fresh namespace before the generated code.
// It binds the engine primitives under the names the generator was taught,
// so the code runs as if its imports had already happened once at process
// start. The sanitizer strips any import the generator emits anyway.
// Yaegi cannot parse an import declaration and top-level statements in a
// single Eval, so the import is evaluated separately before the bindings.
const preludeImport = `import "voltlab/internal/spice"`

const prelude = `
NewCircuit := spice.NewCircuit
gnd := spice.Gnd
InitEngine := spice.MustInitEngine

u_V := spice.Volts
u_mV := spice.Millivolts
u_A := spice.Amps
u_mA := spice.Milliamps
u_Ohm := spice.Ohms
u_kOhm := spice.KiloOhms
u_F := spice.Farads
u_nF := spice.NanoFarads
u_pF := spice.PicoFarads
u_H := spice.Henries
u_mH := spice.MilliHenries
u_s := spice.Seconds
u_ms := spice.Milliseconds
u_us := spice.Microseconds
u_Hz := spice.Hertz
u_kHz := spice.KiloHertz
u_MHz := spice.MegaHertz
u_GHz := spice.GigaHertz
`

// DefaultTimeout bounds one execution. The engine has its own step limit, so
// this mostly catches generated code that loops on its own.
const DefaultTimeout = 30 * time.Second

// CompileError is a syntax failure in repaired source. The parse error and
// the offending source are both kept so diagnostics can show them together.
type CompileError struct {
	Err    error
	Source string
}

func (e *CompileError) Error() string { return e.Err.Error() }

func (e *CompileError) Unwrap() error { return e.Err }

// ErrNoAnalysis is returned when execution finished but left no analysis
// object behind.
var ErrNoAnalysis = errors.New("execution finished without producing an analysis object")

// Executor runs one snippet per fresh namespace. The zero value is not
// usable; construct with New.
type Executor struct {
	timeout time.Duration
}

// New creates an executor with the default timeout.
func New() *Executor {
	return &Executor{timeout: DefaultTimeout}
}

// NewWithTimeout creates an executor with an explicit timeout.
func NewWithTimeout(d time.Duration) *Executor {
	return &Executor{timeout: d}
}

// Execute compiles and runs repaired source in a fresh namespace and returns
// the analysis object it produced. A namespace is never reused: the engine's
// process-lifetime contract allows one initialization and the interpreter
// state after arbitrary generated code is not worth trusting twice.
//
// Error kinds a caller can distinguish:
//   - *CompileError: the source does not parse
//   - *spice.InitError: engine process-lifetime violation
//   - *spice.SimError: the engine ran and reported a numerical failure
//   - ErrNoAnalysis: ran fine, no analysis variable
//   - context errors when the deadline expires first
func (e *Executor) Execute(ctx context.Context, src string) (*spice.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading stdlib symbols: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("loading engine symbols: %w", err)
	}
	if _, err := i.Eval(preludeImport); err != nil {
		return nil, fmt.Errorf("binding engine prelude: %w", err)
	}
	if _, err := i.Eval(prelude); err != nil {
		return nil, fmt.Errorf("binding engine prelude: %w", err)
	}

	prog, err := i.Compile(src)
	if err != nil {
		return nil, &CompileError{Err: err, Source: src}
	}

	// The interpreter cannot be preempted mid-run; on timeout the goroutine
	// is abandoned and the process is expected to be recycled by the caller.
	done := make(chan error, 1)
	go func() {
		done <- runProgram(i, prog)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, classifyRunError(err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	v, err := i.Eval("analysis")
	if err != nil {
		return nil, ErrNoAnalysis
	}
	analysis, ok := v.Interface().(*spice.Analysis)
	if !ok || analysis == nil {
		return nil, ErrNoAnalysis
	}
	return analysis, nil
}

// runProgram executes the compiled program, converting panics that escape
// the interpreter into errors.
func runProgram(i *interp.Interpreter, prog *interp.Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			default:
				err = fmt.Errorf("execution panic: %v", r)
			}
		}
	}()
	_, err = i.Execute(prog)
	return err
}

// classifyRunError digs engine errors out of the interpreter's panic
// wrapper so callers see *spice.SimError and *spice.InitError directly.
func classifyRunError(err error) error {
	var p interp.Panic
	if errors.As(err, &p) {
		if inner, ok := p.Value.(error); ok {
			err = inner
		}
	}
	var simErr *spice.SimError
	if errors.As(err, &simErr) {
		return simErr
	}
	var initErr *spice.InitError
	if errors.As(err, &initErr) {
		return initErr
	}
	return err
}
