package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Writer converts objects of type O into Records and writes them to a Sink.
//
// A Writer may be used for several Write calls. Sequence numbers continue
// across calls and captured errors accumulate. Calls are serialized.
type Writer[O any] struct {
	*observer

	sink Sink
	conf *processorConfig[O, Record]
	ctrl *controller[O, Record]

	mu            sync.Mutex
	sequence      int64
	headerWritten bool
	captured      []*CapturedError
}

// NewWriter creates a Writer emitting records to sink.
//
// Panics:
//
//	If a WithFilter or WithVerifier option does not match O / Record.
func NewWriter[O any](sink Sink, convert ConvertFunc[O, Record], opts ...Option) *Writer[O] {
	conf := createConfig[O, Record](opts...)
	obs := newObserver(conf.workerCount)

	return &Writer[O]{
		observer: obs,
		sink:     sink,
		conf:     conf,
		ctrl:     &controller[O, Record]{conf: conf, convert: convert, obs: obs},
	}
}

// Write converts every item of src and writes the resulting records, in
// input order unless the Writer is unordered. It returns the number of
// records written, not counting the header.
//
// Nothing is written when the conversion run aborts. A failing sink aborts
// the call with a *ConversionError after the records before it were written.
func (w *Writer[O]) Write(ctx context.Context, src Source[O]) (int, error) {
	if w.sink == nil {
		return 0, ErrNoSink
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	res, err := w.ctrl.run(ctx, src, w.sequence)
	if res != nil {
		w.sequence = res.lastSequence
		w.captured = append(w.captured, res.captured...)
	}
	if err != nil {
		return 0, err
	}

	if len(w.conf.header) > 0 && !w.headerWritten {
		if err := w.sink.WriteRecord(Record{Fields: w.conf.header}); err != nil {
			return 0, w.sinkError("writing header", err)
		}
		w.headerWritten = true
	}

	written := 0
	for _, rec := range res.outputs {
		if err := w.sink.WriteRecord(rec); err != nil {
			return written, w.sinkError("writing record", err)
		}
		written++
	}

	if err := w.sink.Flush(); err != nil {
		return written, w.sinkError("flushing sink", err)
	}
	return written, nil
}

// WriteAll is Write over a slice.
func (w *Writer[O]) WriteAll(ctx context.Context, items []O) (int, error) {
	return w.Write(ctx, FromSlice(items))
}

// CapturedErrors returns every domain error captured by this Writer so far.
func (w *Writer[O]) CapturedErrors() []*CapturedError {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.captured)
}

func (w *Writer[O]) sinkError(op string, err error) error {
	w.conf.logger.Error().Err(err).Str("component", "writer").Msg(op + " failed")
	return &ConversionError{Err: fmt.Errorf("%s: %w", op, err)}
}
