package pipeline

import "sync/atomic"

// failure is the record of the error that ended a run.
type failure struct {
	sequence int64
	line     int64
	input    any
	err      error
}

// asError converts the failure into the error surfaced to callers.
func (f *failure) asError() *ConversionError {
	return &ConversionError{
		Sequence: f.sequence,
		Line:     f.line,
		Input:    f.input,
		Err:      f.err,
	}
}

// terminalCell holds at most one failure. The first writer wins; later
// writes are discarded. Safe for concurrent use.
type terminalCell struct {
	p atomic.Pointer[failure]
}

// set stores f if the cell is empty and reports whether it did.
func (c *terminalCell) set(f *failure) bool {
	return c.p.CompareAndSwap(nil, f)
}

// load returns the stored failure or nil.
func (c *terminalCell) load() *failure {
	return c.p.Load()
}
