package pipeline

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants.
const (
	// Metrics.
	MetricItemsSubmitted = metricz.Key("rowpipe.items.submitted")
	MetricItemsConverted = metricz.Key("rowpipe.items.converted")
	MetricItemsCaptured  = metricz.Key("rowpipe.items.captured")
	MetricItemsSkipped   = metricz.Key("rowpipe.items.skipped")
	MetricRunsTotal      = metricz.Key("rowpipe.runs.total")
	MetricRunsAborted    = metricz.Key("rowpipe.runs.aborted")
	MetricWorkersMax     = metricz.Key("rowpipe.workers.max")
	MetricRunDurationMs  = metricz.Key("rowpipe.run.duration.ms")

	// Spans.
	RunSpan = tracez.Key("rowpipe.run")

	// Tags.
	TagRunID        = tracez.Tag("rowpipe.run_id")
	TagOrdered      = tracez.Tag("rowpipe.ordered")
	TagThrowOnError = tracez.Tag("rowpipe.throw_on_error")
	TagSubmitted    = tracez.Tag("rowpipe.submitted")
	TagCaptured     = tracez.Tag("rowpipe.captured")
	TagSuccess      = tracez.Tag("rowpipe.success")
	TagError        = tracez.Tag("rowpipe.error")

	// Hook event keys.
	EventItemCaptured = hookz.Key("rowpipe.item.captured")
	EventRunAborted   = hookz.Key("rowpipe.run.aborted")
	EventRunCompleted = hookz.Key("rowpipe.run.completed")
)

// RunEvent describes a finished run. It is emitted via hookz when a run
// completes or aborts.
type RunEvent struct {
	RunID     string        // Unique id of the run
	Submitted int64         // Items submitted for conversion
	Converted int64         // Items converted successfully
	Captured  int64         // Domain errors captured
	Skipped   int64         // Items dropped by a filter or verifier
	Duration  time.Duration // Wall time of the run
	Err       error         // Terminal error for aborted runs
	Timestamp time.Time     // When the event was emitted
}

// CaptureEvent describes one captured domain error.
type CaptureEvent struct {
	RunID     string
	Error     *CapturedError
	Timestamp time.Time
}

// observer bundles the metrics, tracing and hooks of one Reader or Writer.
type observer struct {
	metrics      *metricz.Registry
	tracer       *tracez.Tracer
	runHooks     *hookz.Hooks[RunEvent]
	captureHooks *hookz.Hooks[CaptureEvent]
}

func newObserver(workerCount int) *observer {
	registry := metricz.New()

	registry.Counter(MetricItemsSubmitted)
	registry.Counter(MetricItemsConverted)
	registry.Counter(MetricItemsCaptured)
	registry.Counter(MetricItemsSkipped)
	registry.Counter(MetricRunsTotal)
	registry.Counter(MetricRunsAborted)
	registry.Gauge(MetricWorkersMax).Set(float64(workerCount))
	registry.Gauge(MetricRunDurationMs)

	return &observer{
		metrics:      registry,
		tracer:       tracez.New(),
		runHooks:     hookz.New[RunEvent](),
		captureHooks: hookz.New[CaptureEvent](),
	}
}

// Metrics returns the metrics registry.
func (o *observer) Metrics() *metricz.Registry {
	return o.metrics
}

// Tracer returns the tracer that records one span per run.
func (o *observer) Tracer() *tracez.Tracer {
	return o.tracer
}

// OnCaptured registers a handler called asynchronously for every captured
// domain error.
func (o *observer) OnCaptured(handler func(context.Context, CaptureEvent) error) error {
	_, err := o.captureHooks.Hook(EventItemCaptured, handler)
	return err
}

// OnAborted registers a handler called asynchronously when a run aborts.
func (o *observer) OnAborted(handler func(context.Context, RunEvent) error) error {
	_, err := o.runHooks.Hook(EventRunAborted, handler)
	return err
}

// OnCompleted registers a handler called asynchronously when a run completes.
func (o *observer) OnCompleted(handler func(context.Context, RunEvent) error) error {
	_, err := o.runHooks.Hook(EventRunCompleted, handler)
	return err
}

// Close gracefully shuts down observability components.
func (o *observer) Close() error {
	if o.tracer != nil {
		o.tracer.Close()
	}
	o.runHooks.Close()
	o.captureHooks.Close()
	return nil
}

func (o *observer) itemSubmitted() {
	o.metrics.Counter(MetricItemsSubmitted).Inc()
}

func (o *observer) itemConverted() {
	o.metrics.Counter(MetricItemsConverted).Inc()
}

func (o *observer) itemSkipped() {
	o.metrics.Counter(MetricItemsSkipped).Inc()
}

func (o *observer) itemCaptured(ctx context.Context, runID string, ce *CapturedError) {
	o.metrics.Counter(MetricItemsCaptured).Inc()
	_ = o.captureHooks.Emit(ctx, EventItemCaptured, CaptureEvent{ //nolint:errcheck
		RunID:     runID,
		Error:     ce,
		Timestamp: time.Now(),
	})
}

func (o *observer) runFinished(ctx context.Context, ev RunEvent) {
	o.metrics.Counter(MetricRunsTotal).Inc()
	o.metrics.Gauge(MetricRunDurationMs).Set(float64(ev.Duration.Milliseconds()))

	key := EventRunCompleted
	if ev.Err != nil {
		o.metrics.Counter(MetricRunsAborted).Inc()
		key = EventRunAborted
	}

	ev.Timestamp = time.Now()
	_ = o.runHooks.Emit(ctx, key, ev) //nolint:errcheck
}
