package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"github.com/utkarsh5026/rowpipe/internal/queue"
)

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeSkipped
	outcomeDomain
	outcomeUnexpected
)

// outcome is the classified result of converting one item.
type outcome[O any] struct {
	kind  outcomeKind
	value O
	err   error
}

// runState is the per-run state shared between the controller and the tasks
// of one run. It is allocated fresh for every run.
type runState[O any] struct {
	id      string
	results *queue.Queue[Sequenced[O]]
	errs    *queue.Queue[*CapturedError]
	pool    *failFastPool
	obs     *observer
	stats   *runStats
}

// conversionTask converts exactly one sequenced input item.
type conversionTask[I, O any] struct {
	work    Sequenced[I]
	conf    *processorConfig[I, O]
	convert ConvertFunc[I, O]
	state   *runState[O]
}

// run is the pool entry point. It converts the item and routes the outcome:
// successes to the results queue, captured domain errors to the errors queue,
// everything else to the pool's terminal cell.
func (t *conversionTask[I, O]) run(ctx context.Context) {
	out := t.execute(ctx)
	s := t.state

	switch out.kind {
	case outcomeSuccess:
		s.stats.converted.Add(1)
		s.obs.itemConverted()
		_ = s.results.Push(Sequenced[O]{Sequence: t.work.Sequence, Value: out.value})

	case outcomeSkipped:
		s.stats.skipped.Add(1)
		s.obs.itemSkipped()

	case outcomeDomain:
		if t.conf.throwOnError {
			s.pool.fail(t.failure(out.err))
			return
		}

		n := s.stats.captured.Add(1)
		if t.conf.captureLimit > 0 && n > int64(t.conf.captureLimit) {
			s.pool.fail(t.failure(tooManyErrors(t.conf.captureLimit, out.err)))
			return
		}

		ce := t.captured(out.err)
		s.obs.itemCaptured(ctx, s.id, ce)
		_ = s.errs.Push(ce)

	default:
		s.pool.fail(t.failure(out.err))
	}
}

// execute converts the item on the calling goroutine and classifies the
// result without touching any shared state.
func (t *conversionTask[I, O]) execute(ctx context.Context) outcome[O] {
	if t.conf.rateLimiter != nil {
		if err := t.conf.rateLimiter.Wait(ctx); err != nil {
			// Rate limiter's error doesn't wrap context errors, so check context explicitly
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return outcome[O]{kind: outcomeUnexpected, err: err}
		}
	}

	value, err := t.convertWithRecovery(ctx)
	if err != nil {
		return t.classify(err)
	}

	for _, verify := range t.conf.verifiers {
		keep, err := verify(value)
		if err != nil {
			return t.classify(err)
		}
		if !keep {
			return outcome[O]{kind: outcomeSkipped}
		}
	}

	return outcome[O]{kind: outcomeSuccess, value: value}
}

// classify separates expected domain errors from unexpected ones.
func (t *conversionTask[I, O]) classify(err error) outcome[O] {
	if t.conf.classifier(err) {
		return outcome[O]{kind: outcomeDomain, err: err}
	}
	return outcome[O]{kind: outcomeUnexpected, err: err}
}

// convertWithRecovery invokes the converter once.
// A panic is converted to an error carrying the stack trace.
func (t *conversionTask[I, O]) convertWithRecovery(ctx context.Context) (result O, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("converter panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return t.convert(ctx, t.work.Value)
}

func (t *conversionTask[I, O]) failure(err error) *failure {
	return &failure{
		sequence: t.work.Sequence,
		line:     lineOf(t.work.Value),
		input:    t.work.Value,
		err:      err,
	}
}

func (t *conversionTask[I, O]) captured(err error) *CapturedError {
	return &CapturedError{
		Sequence: t.work.Sequence,
		Line:     lineOf(t.work.Value),
		Input:    t.work.Value,
		Err:      err,
	}
}

func tooManyErrors(limit int, last error) error {
	return fmt.Errorf("%w (limit %d): %w", ErrTooManyErrors, limit, last)
}
