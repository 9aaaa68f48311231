package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/tracez"
)

func TestObserver_Metrics(t *testing.T) {
	clock := clockz.NewFakeClock()
	convert := func(ctx context.Context, rec Record) (int, error) {
		clock.Advance(50 * time.Millisecond)
		return parseInt(ctx, rec)
	}

	r := NewReader(Records(rowsOf("1", "x", "3", "#")), convert,
		WithWorkerCount(1),
		WithThrowOnError(false),
		WithClock(clock),
		WithFilter(func(rec Record) bool { return rec.Fields[0] != "#" }),
	)
	defer r.Close()

	_, err := r.ReadAll(context.Background())
	require.NoError(t, err)

	m := r.Metrics()
	assert.Equal(t, float64(3), m.Counter(MetricItemsSubmitted).Value())
	assert.Equal(t, float64(2), m.Counter(MetricItemsConverted).Value())
	assert.Equal(t, float64(1), m.Counter(MetricItemsCaptured).Value())
	assert.Equal(t, float64(1), m.Counter(MetricItemsSkipped).Value())
	assert.Equal(t, float64(1), m.Counter(MetricRunsTotal).Value())
	assert.Equal(t, float64(0), m.Counter(MetricRunsAborted).Value())
	assert.Equal(t, float64(1), m.Gauge(MetricWorkersMax).Value())
	assert.Equal(t, float64(150), m.Gauge(MetricRunDurationMs).Value())
}

func TestObserver_Hooks(t *testing.T) {
	t.Run("completed and captured", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1", "x")), parseInt, WithThrowOnError(false), WithRunIDFunc(func() string { return "run-1" }))
		defer r.Close()

		completed := make(chan RunEvent, 1)
		captured := make(chan CaptureEvent, 1)
		require.NoError(t, r.OnCompleted(func(_ context.Context, ev RunEvent) error {
			completed <- ev
			return nil
		}))
		require.NoError(t, r.OnCaptured(func(_ context.Context, ev CaptureEvent) error {
			captured <- ev
			return nil
		}))

		_, err := r.ReadAll(context.Background())
		require.NoError(t, err)

		select {
		case ev := <-completed:
			assert.Equal(t, "run-1", ev.RunID)
			assert.Equal(t, int64(2), ev.Submitted)
			assert.Equal(t, int64(1), ev.Converted)
			assert.Equal(t, int64(1), ev.Captured)
			assert.NoError(t, ev.Err)
		case <-time.After(time.Second):
			t.Fatal("completed event not delivered")
		}

		select {
		case ev := <-captured:
			assert.Equal(t, "run-1", ev.RunID)
			assert.Equal(t, int64(2), ev.Error.Sequence)
		case <-time.After(time.Second):
			t.Fatal("captured event not delivered")
		}
	})

	t.Run("aborted", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewReader(Records(rowsOf("1")), func(context.Context, Record) (int, error) {
			return 0, boom
		})
		defer r.Close()

		aborted := make(chan RunEvent, 1)
		require.NoError(t, r.OnAborted(func(_ context.Context, ev RunEvent) error {
			aborted <- ev
			return nil
		}))

		_, err := r.ReadAll(context.Background())
		require.Error(t, err)

		select {
		case ev := <-aborted:
			assert.ErrorIs(t, ev.Err, boom)
		case <-time.After(time.Second):
			t.Fatal("aborted event not delivered")
		}
		assert.Equal(t, float64(1), r.Metrics().Counter(MetricRunsAborted).Value())
	})
}

func TestObserver_Spans(t *testing.T) {
	w := NewWriter(&SliceSink{}, formatPerson)
	defer w.Close()

	var mu sync.Mutex
	var spans []tracez.Span
	w.Tracer().OnSpanComplete(func(span tracez.Span) {
		mu.Lock()
		spans = append(spans, span)
		mu.Unlock()
	})

	_, err := w.WriteAll(context.Background(), []person{{"ann", 1}})
	require.NoError(t, err)
	_, err = w.WriteAll(context.Background(), []person{{"", 2}})
	require.Error(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(spans) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, span := range spans {
		assert.Equal(t, RunSpan, span.Name)
		_, ok := span.Tags[TagRunID]
		assert.True(t, ok)
	}
	assert.Equal(t, "true", spans[0].Tags[TagSuccess])
	assert.Equal(t, "false", spans[1].Tags[TagSuccess])
	assert.NotEmpty(t, spans[1].Tags[TagError])
}
