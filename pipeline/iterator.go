package pipeline

import (
	"context"
	"fmt"
	"iter"
	"slices"
)

// Iterator converts one item at a time on the caller's goroutine.
//
// It honours the same options as a Reader except the worker settings and
// ordering, which do not apply. In capture mode domain errors are recorded
// and skipped; otherwise the first failure is returned and the Iterator is
// finished. An Iterator is not safe for concurrent use.
type Iterator[I, O any] struct {
	source  Source[I]
	convert ConvertFunc[I, O]
	conf    *processorConfig[I, O]
	obs     *observer
	runID   string

	// claim is consulted on the first call to Next; returning false makes
	// the Iterator fail with ErrConsumed.
	claim   func() bool
	started bool

	sequence int64
	captured []*CapturedError
	done     bool
}

// NewIterator creates a standalone Iterator over source.
func NewIterator[I, O any](source Source[I], convert ConvertFunc[I, O], opts ...Option) *Iterator[I, O] {
	conf := createConfig[I, O](opts...)
	return newIterator(source, convert, conf, newObserver(1))
}

func newIterator[I, O any](source Source[I], convert ConvertFunc[I, O], conf *processorConfig[I, O], obs *observer) *Iterator[I, O] {
	return &Iterator[I, O]{
		source:  source,
		convert: convert,
		conf:    conf,
		obs:     obs,
		runID:   conf.newRunID(),
	}
}

// Next converts and returns the next item. It returns false once the input
// is exhausted or after an error has been returned.
func (it *Iterator[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O

	if it.done {
		return zero, false, nil
	}
	if !it.started {
		if it.source == nil {
			return zero, false, ErrNoSource
		}
		if it.convert == nil {
			return zero, false, ErrNoConverter
		}
		if it.claim != nil && !it.claim() {
			it.done = true
			return zero, false, ErrConsumed
		}
		it.started = true
	}

	for {
		if err := ctx.Err(); err != nil {
			return zero, false, it.finish(&failure{err: err})
		}

		item, ok, err := it.source.Next(ctx)
		if err != nil {
			return zero, false, it.finish(&failure{err: fmt.Errorf("reading input: %w", err)})
		}
		if !ok {
			it.done = true
			return zero, false, nil
		}

		if it.conf.filter != nil && !it.conf.filter(item) {
			it.obs.itemSkipped()
			continue
		}

		it.sequence++
		it.obs.itemSubmitted()
		task := &conversionTask[I, O]{
			work:    Sequenced[I]{Sequence: it.sequence, Value: item},
			conf:    it.conf,
			convert: it.convert,
		}

		out := task.execute(ctx)
		switch out.kind {
		case outcomeSuccess:
			it.obs.itemConverted()
			return out.value, true, nil

		case outcomeSkipped:
			it.obs.itemSkipped()

		case outcomeDomain:
			if it.conf.throwOnError {
				return zero, false, it.finish(task.failure(out.err))
			}
			if it.conf.captureLimit > 0 && len(it.captured) >= it.conf.captureLimit {
				return zero, false, it.finish(task.failure(tooManyErrors(it.conf.captureLimit, out.err)))
			}
			ce := task.captured(out.err)
			it.captured = append(it.captured, ce)
			it.obs.itemCaptured(ctx, it.runID, ce)

		default:
			return zero, false, it.finish(task.failure(out.err))
		}
	}
}

// CapturedErrors returns the domain errors skipped so far, in input order.
func (it *Iterator[I, O]) CapturedErrors() []*CapturedError {
	return slices.Clone(it.captured)
}

// All adapts the Iterator to a range-over-func sequence. An error is yielded
// once, as the last element.
//
// Example:
//
//	for user, err := range reader.Iterator().All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(user.Name)
//	}
func (it *Iterator[I, O]) All(ctx context.Context) iter.Seq2[O, error] {
	return func(yield func(O, error) bool) {
		for {
			v, ok, err := it.Next(ctx)
			if err != nil {
				var zero O
				yield(zero, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}

func (it *Iterator[I, O]) finish(f *failure) error {
	it.done = true
	it.conf.logger.Warn().
		Err(f.err).
		Str("component", "iterator").
		Str("run_id", it.runID).
		Int64("sequence", f.sequence).
		Msg("iteration aborted")
	return f.asError()
}
