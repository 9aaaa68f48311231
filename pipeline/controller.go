package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/utkarsh5026/rowpipe/internal/queue"
)

// runStats counts per-item outcomes of one run. Updated concurrently by tasks.
type runStats struct {
	submitted atomic.Int64
	converted atomic.Int64
	captured  atomic.Int64
	skipped   atomic.Int64
}

// runResult is what a finished run hands back to a Reader or Writer.
type runResult[O any] struct {
	outputs  []O
	captured []*CapturedError
	// lastSequence is the sequence number of the last submitted item, or the
	// starting offset when nothing was submitted.
	lastSequence int64
	stats        *runStats
}

// controller drives one run at a time: it pulls input, stamps sequence
// numbers, feeds the pool and assembles the result.
type controller[I, O any] struct {
	conf    *processorConfig[I, O]
	convert ConvertFunc[I, O]
	obs     *observer
}

// run converts every item of src. Sequence numbers start at offset+1.
//
// On success it returns all outputs and captured errors. When the run aborts
// the outputs are discarded, the captured errors collected so far are still
// returned and the error is a *ConversionError.
func (c *controller[I, O]) run(ctx context.Context, src Source[I], offset int64) (*runResult[O], error) {
	if err := c.validate(src); err != nil {
		return nil, err
	}

	id := c.conf.newRunID()
	log := c.conf.logger.With().
		Str("component", "pipeline").
		Str("run_id", id).
		Logger()
	started := c.conf.clock.Now()

	ctx, span := c.obs.tracer.StartSpan(ctx, RunSpan)
	defer span.Finish()
	span.SetTag(TagRunID, id)
	span.SetTag(TagOrdered, strconv.FormatBool(c.conf.ordered))
	span.SetTag(TagThrowOnError, strconv.FormatBool(c.conf.throwOnError))

	state := &runState[O]{
		id:      id,
		results: queue.New[Sequenced[O]](0),
		errs:    queue.New[*CapturedError](0),
		pool:    newFailFastPool(c.conf.workerCount, c.conf.taskBuffer),
		obs:     c.obs,
		stats:   &runStats{},
	}

	log.Debug().
		Int("workers", c.conf.workerCount).
		Bool("ordered", c.conf.ordered).
		Bool("throw_on_error", c.conf.throwOnError).
		Int64("first_sequence", offset+1).
		Msg("run started")

	var acc *accumulator[O]
	if c.conf.ordered {
		acc = newAccumulator(state.results, state.errs)
		acc.start()
	}
	state.pool.start(ctx)

	last := c.submitAll(ctx, src, state, offset)
	state.pool.shutdown()

	if err := state.pool.awaitTermination(c.conf.awaitTimeout); err != nil {
		state.pool.fail(&failure{err: fmt.Errorf("waiting for workers: %w", err)})
	}

	res := &runResult[O]{lastSequence: last, stats: state.stats}
	if acc != nil {
		acc.requestStop()
		acc.join()
		res.outputs = acc.outputs()
		res.captured = acc.captured()
	} else {
		for _, item := range state.results.Drain() {
			res.outputs = append(res.outputs, item.Value)
		}
		res.captured = state.errs.Drain()
	}

	ev := RunEvent{
		RunID:     id,
		Submitted: state.stats.submitted.Load(),
		Converted: state.stats.converted.Load(),
		Captured:  state.stats.captured.Load(),
		Skipped:   state.stats.skipped.Load(),
		Duration:  c.conf.clock.Now().Sub(started),
	}
	span.SetTag(TagSubmitted, strconv.FormatInt(ev.Submitted, 10))
	span.SetTag(TagCaptured, strconv.Itoa(len(res.captured)))

	if f := state.pool.terminalError(); f != nil {
		err := f.asError()
		res.outputs = nil
		ev.Err = err

		span.SetTag(TagSuccess, "false")
		span.SetTag(TagError, err.Error())
		log.Warn().
			Err(err).
			Int64("sequence", f.sequence).
			Int64("line", f.line).
			Int64("submitted", ev.Submitted).
			Dur("elapsed", ev.Duration).
			Msg("run aborted")
		c.obs.runFinished(ctx, ev)
		return res, err
	}

	span.SetTag(TagSuccess, "true")
	log.Info().
		Int64("submitted", ev.Submitted).
		Int64("converted", ev.Converted).
		Int64("captured", ev.Captured).
		Int64("skipped", ev.Skipped).
		Dur("elapsed", ev.Duration).
		Msg("run completed")
	c.obs.runFinished(ctx, ev)
	return res, nil
}

// validate reports configuration errors before any goroutine is started.
func (c *controller[I, O]) validate(src Source[I]) error {
	if src == nil {
		return ErrNoSource
	}
	if c.convert == nil {
		return ErrNoConverter
	}
	return nil
}

// submitAll pulls src until it is exhausted or the pool refuses work and
// returns the last sequence number handed out.
func (c *controller[I, O]) submitAll(ctx context.Context, src Source[I], state *runState[O], seq int64) int64 {
	for state.pool.terminalError() == nil {
		if err := ctx.Err(); err != nil {
			state.pool.fail(&failure{err: err})
			return seq
		}

		item, ok, err := src.Next(ctx)
		if err != nil {
			state.pool.fail(&failure{err: fmt.Errorf("reading input: %w", err)})
			return seq
		}
		if !ok {
			return seq
		}

		if c.conf.filter != nil && !c.conf.filter(item) {
			state.stats.skipped.Add(1)
			c.obs.itemSkipped()
			continue
		}

		task := &conversionTask[I, O]{
			work:    Sequenced[I]{Sequence: seq + 1, Value: item},
			conf:    c.conf,
			convert: c.convert,
			state:   state,
		}
		if err := state.pool.submit(task); err != nil {
			return seq
		}

		seq++
		state.stats.submitted.Add(1)
		c.obs.itemSubmitted()
	}
	return seq
}
