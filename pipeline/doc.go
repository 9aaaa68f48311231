// Package pipeline provides a parallel, order-restoring conversion pipeline
// between flat records and structured objects.
//
// The read path turns a stream of Records into objects with a Reader; the
// write path turns objects into Records with a Writer. Both share the same
// machinery: a fixed-size worker pool converts items concurrently, a
// background accumulator restores input order, and a fail-fast policy stops
// the whole run on the first unrecoverable error.
//
// # Basic Usage
//
//	parse := func(ctx context.Context, rec pipeline.Record) (User, error) {
//	    if rec.Fields[0] == "" {
//	        return User{}, pipeline.RequiredMissing("name")
//	    }
//	    return User{Name: rec.Fields[0]}, nil
//	}
//
//	r := pipeline.NewReader(pipeline.Records(rows), parse, pipeline.WithWorkerCount(4))
//	users, err := r.ReadAll(ctx)
//
// # Error Handling
//
// Converters report bad items with a *DomainError (see RequiredMissing,
// TypeMismatch and ConstraintViolation). Every other error, a panic inside
// the converter, a failing source or a cancelled context is unexpected.
//
//   - Throw mode (default): the first error of either kind aborts the run.
//   - Capture mode (WithThrowOnError(false)): domain errors are collected as
//     *CapturedError values and the run continues. Unexpected errors still
//     abort. WithCaptureLimit turns the run into an abort once too many
//     errors were captured.
//
// An aborted run returns a *ConversionError naming the sequence number, the
// line and the raw input of the failing item. Successful outputs of an
// aborted run are discarded. If several items fail at the same time only one
// of them is reported.
//
// # Ordering
//
// Items are numbered from 1 in the order they are pulled from the source.
// Ordered runs (the default) return outputs and captured errors sorted by
// that number. WithOrdered(false) skips the accumulator and returns outputs
// in completion order, which is cheaper for large inputs.
//
// # Streaming
//
// Reader.Iterator converts one item per call on the caller's goroutine:
//
//	for user, err := range r.Iterator().All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(user)
//	}
//
// # Observability
//
// Readers and Writers carry a metricz registry, a tracez tracer (one
// "rowpipe.run" span per run) and hookz hooks:
//
//	r.OnCaptured(func(ctx context.Context, ev pipeline.CaptureEvent) error {
//	    log.Printf("line %d: %v", ev.Error.Line, ev.Error.Err)
//	    return nil
//	})
//	defer r.Close()
//
// # Configuration Options
//
//   - WithWorkerCount(n): Set number of concurrent workers (default: GOMAXPROCS)
//   - WithTaskBuffer(n): Set submission buffer size (default: worker count)
//   - WithOrdered(bool): Keep input order (default: true)
//   - WithThrowOnError(bool): Abort on the first domain error (default: true)
//   - WithCaptureLimit(n): Abort after n captured errors (default: unlimited)
//   - WithDomainErrorClassifier(fn): Decide which errors are domain errors
//   - WithFilter(fn): Skip input items before they are numbered
//   - WithVerifier(fn): Check or drop converted items
//   - WithRateLimit(rate, burst): Limit conversions per second
//   - WithAwaitTimeout(d): Bound the wait for workers after submission
//   - WithLogger(l), WithClock(c), WithRunIDFunc(fn): Ambient plumbing
//   - WithHeader(cols...): Header record written once by a Writer
package pipeline
