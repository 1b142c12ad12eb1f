package spice

import "fmt"

// SimError is a numerical failure reported by the engine itself: a singular
// system matrix, a timestep that cannot cover the analysis window, an unknown
// sweep parameter. The message is meant for humans and is passed through the
// pipeline verbatim.
type SimError struct {
	Analysis string // "op", "transient" or "ac"
	Message  string
}

func (e *SimError) Error() string {
	return fmt.Sprintf("%s analysis failed: %s", e.Analysis, e.Message)
}

// InitError reports a violation of the engine's process-lifetime contract:
// the engine globals were already initialized in this process, or a second
// run tried to enter while one was mid-flight. Not fixable by retrying in
// the same process.
type InitError struct {
	Message string
}

func (e *InitError) Error() string { return e.Message }

func simErrorf(analysis, format string, args ...interface{}) *SimError {
	return &SimError{Analysis: analysis, Message: fmt.Sprintf(format, args...)}
}
