package pipeline

import "context"

// Source is a pull-based stream of input items.
//
// Next returns the next item and true, or false once the stream is
// exhausted. A non-nil error aborts the run that is reading the source.
// A Source is consumed by a single goroutine.
type Source[T any] interface {
	Next(ctx context.Context) (T, bool, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context) (T, bool, error)

// Next calls f.
func (f SourceFunc[T]) Next(ctx context.Context) (T, bool, error) {
	return f(ctx)
}

// FromFunc wraps next as a Source.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error)) Source[T] {
	return SourceFunc[T](next)
}

type sliceSource[T any] struct {
	items []T
	pos   int
}

func (s *sliceSource[T]) Next(context.Context) (T, bool, error) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

// FromSlice returns a Source yielding items in order.
func FromSlice[T any](items []T) Source[T] {
	return &sliceSource[T]{items: items}
}

type chanSource[T any] struct {
	ch <-chan T
}

func (s chanSource[T]) Next(ctx context.Context) (T, bool, error) {
	select {
	case item, ok := <-s.ch:
		return item, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// FromChannel returns a Source that receives from ch until it is closed.
// Next fails with the context's error if ctx ends while waiting.
func FromChannel[T any](ch <-chan T) Source[T] {
	return chanSource[T]{ch: ch}
}

// Records returns a Source of Records built from rows. Line numbers start at 1.
func Records(rows [][]string) Source[Record] {
	records := make([]Record, len(rows))
	for i, fields := range rows {
		records[i] = Record{Line: int64(i + 1), Fields: fields}
	}
	return FromSlice(records)
}

// Sink receives the records produced by a Writer. WriteRecord is only called
// from the goroutine running Write.
type Sink interface {
	WriteRecord(rec Record) error
	Flush() error
}

// SliceSink collects records in memory.
type SliceSink struct {
	Records []Record
	Flushes int
}

// WriteRecord appends rec.
func (s *SliceSink) WriteRecord(rec Record) error {
	s.Records = append(s.Records, rec)
	return nil
}

// Flush counts the call.
func (s *SliceSink) Flush() error {
	s.Flushes++
	return nil
}

// Rows returns the collected records' fields.
func (s *SliceSink) Rows() [][]string {
	rows := make([][]string, len(s.Records))
	for i, rec := range s.Records {
		rows[i] = rec.Fields
	}
	return rows
}
