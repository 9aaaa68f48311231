package pipeline

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// Reader converts a stream of Records into objects of type O.
//
// A Reader is single use: the first ReadAll (or the first Next of its
// Iterator) consumes the source and later calls fail with ErrConsumed.
//
// Example:
//
//	r := pipeline.NewReader(pipeline.Records(rows), parseUser,
//		pipeline.WithWorkerCount(8),
//		pipeline.WithThrowOnError(false),
//	)
//	users, err := r.ReadAll(ctx)
//	for _, ce := range r.CapturedErrors() {
//		log.Printf("skipped line %d: %v", ce.Line, ce.Err)
//	}
type Reader[O any] struct {
	*observer

	source   Source[Record]
	conf     *processorConfig[Record, O]
	ctrl     *controller[Record, O]
	consumed atomic.Bool

	mu       sync.Mutex
	captured []*CapturedError
}

// NewReader creates a Reader over source.
//
// Panics:
//
//	If a WithFilter or WithVerifier option does not match Record / O.
func NewReader[O any](source Source[Record], convert ConvertFunc[Record, O], opts ...Option) *Reader[O] {
	conf := createConfig[Record, O](opts...)
	obs := newObserver(conf.workerCount)

	return &Reader[O]{
		observer: obs,
		source:   source,
		conf:     conf,
		ctrl:     &controller[Record, O]{conf: conf, convert: convert, obs: obs},
	}
}

// ReadAll converts the whole source.
//
// In ordered mode (the default) the result follows input order. If the run
// aborts, no objects are returned and the error is a *ConversionError; the
// errors captured before the abort remain available from CapturedErrors.
func (r *Reader[O]) ReadAll(ctx context.Context) ([]O, error) {
	if err := r.ctrl.validate(r.source); err != nil {
		return nil, err
	}
	if !r.consumed.CompareAndSwap(false, true) {
		return nil, ErrConsumed
	}

	res, err := r.ctrl.run(ctx, r.source, 0)
	if res != nil {
		r.mu.Lock()
		r.captured = res.captured
		r.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return res.outputs, nil
}

// CapturedErrors returns the domain errors captured by the last read.
func (r *Reader[O]) CapturedErrors() []*CapturedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.captured)
}

// Iterator returns a single-item streaming view of the Reader. Items are
// converted one at a time on the caller's goroutine.
func (r *Reader[O]) Iterator() *Iterator[Record, O] {
	it := newIterator(r.source, r.ctrl.convert, r.conf, r.observer)
	it.claim = func() bool { return r.consumed.CompareAndSwap(false, true) }
	return it
}
