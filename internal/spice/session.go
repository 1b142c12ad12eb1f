package spice

import "sync"

// =============================================================================
// ENGINE SESSION
// =============================================================================
// The engine defines process-global state on first initialization, exactly
// once per process. Re-initializing raises a duplicate-declaration error
// instead of silently retrying, and a run must hold the session exclusively:
// two runs mid-flight in the same process are a caller bug, surfaced as the
// same InitError a re-initialization would produce.

type engineSession struct {
	mu          sync.Mutex
	initialized bool
	inFlight    bool
}

var session engineSession

// InitEngine initializes the engine's process-global tables. The first call
// succeeds; every later call fails loudly. Most callers never invoke this
// directly, since AcquireRun initializes lazily on first use, but generated code
// that slipped a re-initialization past the sanitizer lands here.
func InitEngine() error {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.initialized {
		return &InitError{Message: "duplicate declaration of engine globals: the engine is already initialized in this process and cannot be re-initialized; restart the worker process instead"}
	}
	session.initialized = true
	return nil
}

// MustInitEngine is the sandbox-facing variant of InitEngine: generated code
// ignores return values, so a contract violation has to escape as a panic the
// executor can catch and classify.
func MustInitEngine() {
	if err := InitEngine(); err != nil {
		panic(err)
	}
}

// AcquireRun claims the engine session for one simulation run, initializing
// the engine on first use. The returned release function must be called when
// the run ends. If another run is mid-flight the acquire fails with an
// InitError; the session is a mutex with loud failure, not a queue.
func AcquireRun() (release func(), err error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.inFlight {
		return nil, &InitError{Message: "engine session busy: another simulation is mid-flight in this process; serialize requests onto one worker or dispatch to a separate process"}
	}
	session.initialized = true
	session.inFlight = true
	return func() {
		session.mu.Lock()
		session.inFlight = false
		session.mu.Unlock()
	}, nil
}

// TeardownEngine tears the engine down so a fresh process-lifetime can begin.
// This exists for worker restart procedures and tests; it is not part of the
// per-run lifecycle.
func TeardownEngine() {
	session.mu.Lock()
	session.initialized = false
	session.inFlight = false
	session.mu.Unlock()
}
