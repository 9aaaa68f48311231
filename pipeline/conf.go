package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
	"golang.org/x/time/rate"
)

// Option is a functional option for configuring a Reader, Writer or Iterator.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	workerCount  int
	taskBuffer   int
	ordered      bool
	throwOnError bool
	captureLimit int
	classifier   func(error) bool
	rateLimiter  *rate.Limiter
	awaitTimeout time.Duration
	logger       zerolog.Logger
	clock        clockz.Clock
	header       []string
	newRunID     func() string

	// Typed hooks are stored untyped and checked against the pipeline's
	// input/output types in checkfuncs.
	filter    any
	verifiers []any
}

// processorConfig is the resolved, type-checked configuration of one pipeline.
type processorConfig[I, O any] struct {
	workerCount  int
	taskBuffer   int
	ordered      bool
	throwOnError bool
	captureLimit int
	classifier   func(error) bool
	rateLimiter  *rate.Limiter
	awaitTimeout time.Duration
	logger       zerolog.Logger
	clock        clockz.Clock
	header       []string
	newRunID     func() string
	filter       func(I) bool
	verifiers    []func(O) (bool, error)
}

// WithWorkerCount sets the number of concurrent conversion workers.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) Option {
	return func(cfg *pipelineConfig) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithTaskBuffer sets the buffer size of the submission queue.
// Zero makes submission synchronous with a worker picking the task up.
// If not specified, defaults to the number of workers.
func WithTaskBuffer(size int) Option {
	return func(cfg *pipelineConfig) {
		if size >= 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithOrdered controls whether output keeps input order (default true).
// Unordered runs skip the accumulator and return items in completion order.
func WithOrdered(ordered bool) Option {
	return func(cfg *pipelineConfig) {
		cfg.ordered = ordered
	}
}

// WithThrowOnError controls what happens to domain errors (default true).
// When true the first domain error aborts the run; when false domain errors
// are captured and the run continues. Unexpected errors abort in both modes.
func WithThrowOnError(throw bool) Option {
	return func(cfg *pipelineConfig) {
		cfg.throwOnError = throw
	}
}

// WithCaptureLimit aborts a capturing run once more than limit domain errors
// were captured. Zero (the default) means no limit.
func WithCaptureLimit(limit int) Option {
	return func(cfg *pipelineConfig) {
		if limit >= 0 {
			cfg.captureLimit = limit
		}
	}
}

// WithDomainErrorClassifier replaces the function deciding which converter
// errors are expected domain errors. The default is IsDomainError.
func WithDomainErrorClassifier(isDomain func(error) bool) Option {
	return func(cfg *pipelineConfig) {
		if isDomain != nil {
			cfg.classifier = isDomain
		}
	}
}

// WithRateLimit caps conversion throughput.
// tasksPerSecond specifies the maximum number of conversions per second.
// burst specifies the maximum number of conversions that can start at once.
// If not specified, no rate limiting is applied.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 conversions/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *pipelineConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithAwaitTimeout bounds how long a run waits for its workers to finish
// after submission ended. Zero (the default) waits indefinitely.
func WithAwaitTimeout(timeout time.Duration) Option {
	return func(cfg *pipelineConfig) {
		if timeout >= 0 {
			cfg.awaitTimeout = timeout
		}
	}
}

// WithLogger sets the logger used for run lifecycle messages.
// If not specified, nothing is logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *pipelineConfig) {
		cfg.logger = logger
	}
}

// WithClock sets the clock used to time runs. Defaults to the real clock.
func WithClock(clock clockz.Clock) Option {
	return func(cfg *pipelineConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithRunIDFunc sets the generator of per-run ids used in logs, spans and
// events. Defaults to random UUIDs.
func WithRunIDFunc(next func() string) Option {
	return func(cfg *pipelineConfig) {
		if next != nil {
			cfg.newRunID = next
		}
	}
}

// WithHeader makes a Writer emit header once before its first record.
// Readers ignore it.
func WithHeader(header ...string) Option {
	return func(cfg *pipelineConfig) {
		cfg.header = append([]string(nil), header...)
	}
}

// WithFilter skips input items for which keep returns false. Skipped items
// are never sequenced or converted. I must match the pipeline's input type
// (Record for a Reader).
func WithFilter[I any](keep func(I) bool) Option {
	return func(cfg *pipelineConfig) {
		if keep != nil {
			cfg.filter = keep
		}
	}
}

// WithVerifier adds a check run on every successfully converted item.
// Returning false discards the item silently; returning an error is treated
// like a converter error. O must match the pipeline's output type (Record
// for a Writer).
func WithVerifier[O any](verify func(O) (bool, error)) Option {
	return func(cfg *pipelineConfig) {
		if verify != nil {
			cfg.verifiers = append(cfg.verifiers, verify)
		}
	}
}

// checkfuncs validates user-supplied typed hooks against the pipeline's
// input and output types.
//
// Panics:
//
//	If a filter or verifier was declared for a different type than the
//	pipeline converts. The panic message describes the mismatch.
func checkfuncs[I, O any](cfg *pipelineConfig) (filter func(I) bool, verifiers []func(O) (bool, error)) {
	if cfg.filter != nil {
		f, ok := cfg.filter.(func(I) bool)
		if !ok {
			var zero I
			panic(fmt.Sprintf("WithFilter hook has type %T, but pipeline input type is %T", cfg.filter, zero))
		}
		filter = f
	}

	for _, v := range cfg.verifiers {
		f, ok := v.(func(O) (bool, error))
		if !ok {
			var zero O
			panic(fmt.Sprintf("WithVerifier hook has type %T, but pipeline output type is %T", v, zero))
		}
		verifiers = append(verifiers, f)
	}

	return filter, verifiers
}

func createConfig[I, O any](opts ...Option) *processorConfig[I, O] {
	cfg := &pipelineConfig{
		workerCount:  runtime.GOMAXPROCS(0),
		taskBuffer:   -1, // Will be set to workerCount if not specified
		ordered:      true,
		throwOnError: true,
		classifier:   IsDomainError,
		logger:       zerolog.Nop(),
		clock:        clockz.RealClock,
		newRunID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.taskBuffer < 0 {
		cfg.taskBuffer = cfg.workerCount
	}

	filter, verifiers := checkfuncs[I, O](cfg)

	return &processorConfig[I, O]{
		workerCount:  cfg.workerCount,
		taskBuffer:   cfg.taskBuffer,
		ordered:      cfg.ordered,
		throwOnError: cfg.throwOnError,
		captureLimit: cfg.captureLimit,
		classifier:   cfg.classifier,
		rateLimiter:  cfg.rateLimiter,
		awaitTimeout: cfg.awaitTimeout,
		logger:       cfg.logger,
		clock:        cfg.clock,
		header:       cfg.header,
		newRunID:     cfg.newRunID,
		filter:       filter,
		verifiers:    verifiers,
	}
}
