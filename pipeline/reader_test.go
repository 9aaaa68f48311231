package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_OrderPreservation(t *testing.T) {
	rows := numberRows(1000)

	expected := make([]int, 0, len(rows))
	for _, row := range rows {
		n, _ := strconv.Atoi(row[0])
		expected = append(expected, n)
	}

	for _, workers := range []int{1, 2, 8, 32} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			r := NewReader(Records(rows), jitter(parseInt), WithWorkerCount(workers))
			defer r.Close()

			got, err := r.ReadAll(context.Background())
			require.NoError(t, err)
			assert.Equal(t, expected, got)
		})
	}
}

func TestReader_UnorderedSameMultiset(t *testing.T) {
	rows := numberRows(500)

	ordered, err := NewReader(Records(rows), jitter(parseInt), WithWorkerCount(8)).ReadAll(context.Background())
	require.NoError(t, err)

	unordered, err := NewReader(Records(rows), jitter(parseInt),
		WithWorkerCount(8),
		WithOrdered(false),
	).ReadAll(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, ordered, unordered)
}

func TestReader_EmptyInput(t *testing.T) {
	for _, ordered := range []bool{true, false} {
		t.Run(fmt.Sprintf("ordered=%v", ordered), func(t *testing.T) {
			r := NewReader(Records(nil), parseInt, WithOrdered(ordered))
			got, err := r.ReadAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Empty(t, r.CapturedErrors())
		})
	}
}

func TestReader_CaptureMode(t *testing.T) {
	t.Run("isolates bad items", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1", "x", "3")), parseInt,
			WithWorkerCount(4),
			WithThrowOnError(false),
		)

		got, err := r.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, got)

		captured := r.CapturedErrors()
		require.Len(t, captured, 1)
		assert.Equal(t, int64(2), captured[0].Sequence)
		assert.Equal(t, int64(2), captured[0].Line)
		assert.True(t, IsKind(captured[0], KindTypeMismatch))
		assert.Equal(t, Record{Line: 2, Fields: []string{"x"}}, captured[0].Input)
	})

	t.Run("captured errors sorted by sequence", func(t *testing.T) {
		values := make([]string, 200)
		for i := range values {
			if i%3 == 0 {
				values[i] = "bad"
			} else {
				values[i] = strconv.Itoa(i)
			}
		}

		r := NewReader(Records(rowsOf(values...)), jitter(parseInt),
			WithWorkerCount(8),
			WithThrowOnError(false),
		)
		got, err := r.ReadAll(context.Background())
		require.NoError(t, err)

		captured := r.CapturedErrors()
		assert.Len(t, got, 200-len(captured))
		require.Len(t, captured, 67)
		for i := 1; i < len(captured); i++ {
			assert.Less(t, captured[i-1].Sequence, captured[i].Sequence)
		}
	})

	t.Run("unexpected errors still abort", func(t *testing.T) {
		boom := errors.New("boom")
		convert := func(ctx context.Context, rec Record) (int, error) {
			if rec.Fields[0] == "2" {
				return 0, boom
			}
			return parseInt(ctx, rec)
		}

		r := NewReader(Records(rowsOf("1", "2", "3")), convert, WithThrowOnError(false))
		got, err := r.ReadAll(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Nil(t, got)
	})

	t.Run("capture limit aborts", func(t *testing.T) {
		r := NewReader(Records(rowsOf("a", "b", "c", "d", "e")), parseInt,
			WithWorkerCount(4),
			WithThrowOnError(false),
			WithCaptureLimit(2),
		)

		got, err := r.ReadAll(context.Background())
		require.ErrorIs(t, err, ErrTooManyErrors)
		assert.True(t, IsKind(err, KindTypeMismatch))
		assert.Nil(t, got)
		assert.Len(t, r.CapturedErrors(), 2)
	})

	t.Run("custom classifier", func(t *testing.T) {
		errSkip := errors.New("skip me")
		convert := func(ctx context.Context, rec Record) (int, error) {
			if rec.Fields[0] == "skip" {
				return 0, errSkip
			}
			return parseInt(ctx, rec)
		}

		r := NewReader(Records(rowsOf("1", "skip", "3")), convert,
			WithThrowOnError(false),
			WithDomainErrorClassifier(func(err error) bool { return errors.Is(err, errSkip) }),
		)
		got, err := r.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, got)
		require.Len(t, r.CapturedErrors(), 1)
		assert.ErrorIs(t, r.CapturedErrors()[0], errSkip)
	})
}

func TestReader_ThrowMode(t *testing.T) {
	t.Run("domain error aborts with position", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1", "x", "3")), parseInt, WithWorkerCount(1))

		got, err := r.ReadAll(context.Background())
		require.Error(t, err)
		assert.Nil(t, got)

		var convErr *ConversionError
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, int64(2), convErr.Sequence)
		assert.Equal(t, int64(2), convErr.Line)
		assert.Equal(t, Record{Line: 2, Fields: []string{"x"}}, convErr.Input)

		var domainErr *DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "n", domainErr.Field)
		assert.Equal(t, "x", domainErr.Value)
	})

	t.Run("fail fast with one worker", func(t *testing.T) {
		log := &callLog{}
		boom := errors.New("boom")
		convert := func(_ context.Context, rec Record) (string, error) {
			log.add(rec.Fields[0])
			if rec.Fields[0] == "B" {
				return "", boom
			}
			return rec.Fields[0], nil
		}

		r := NewReader(Records(rowsOf("A", "B", "C", "D")), convert,
			WithWorkerCount(1),
			WithTaskBuffer(0),
		)

		got, err := r.ReadAll(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Nil(t, got)
		assert.Equal(t, []string{"A", "B"}, log.snapshot())

		var convErr *ConversionError
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, int64(2), convErr.Sequence)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		convert := func(ctx context.Context, rec Record) (int, error) {
			if rec.Fields[0] == "2" {
				panic("kaboom")
			}
			return parseInt(ctx, rec)
		}

		r := NewReader(Records(rowsOf("1", "2", "3")), convert, WithThrowOnError(false))
		_, err := r.ReadAll(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "converter panic: kaboom")
		assert.Contains(t, err.Error(), "stack trace")
	})
}

func TestReader_Hooks(t *testing.T) {
	t.Run("filter skips before sequencing", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1", "#", "x", "3")), parseInt,
			WithThrowOnError(false),
			WithFilter(func(rec Record) bool { return rec.Fields[0] != "#" }),
		)

		got, err := r.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, got)

		captured := r.CapturedErrors()
		require.Len(t, captured, 1)
		assert.Equal(t, int64(2), captured[0].Sequence)
		assert.Equal(t, int64(3), captured[0].Line)
		assert.Equal(t, float64(1), r.Metrics().Counter(MetricItemsSkipped).Value())
	})

	t.Run("verifier drops and rejects", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1", "-5", "500", "7")), parseInt,
			WithThrowOnError(false),
			WithVerifier(func(n int) (bool, error) {
				if n < 0 {
					return false, nil
				}
				if n > 100 {
					return false, ConstraintViolation("n", "must be at most 100")
				}
				return true, nil
			}),
		)

		got, err := r.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 7}, got)

		captured := r.CapturedErrors()
		require.Len(t, captured, 1)
		assert.Equal(t, int64(3), captured[0].Sequence)
		assert.True(t, IsKind(captured[0], KindConstraint))
	})

	t.Run("mismatched hook types panic", func(t *testing.T) {
		assert.Panics(t, func() {
			NewReader(Records(nil), parseInt, WithVerifier(func(string) (bool, error) { return true, nil }))
		})
		assert.Panics(t, func() {
			NewReader(Records(nil), parseInt, WithFilter(func(int) bool { return true }))
		})
	})
}

func TestReader_Lifecycle(t *testing.T) {
	t.Run("single use", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1")), parseInt)

		_, err := r.ReadAll(context.Background())
		require.NoError(t, err)

		_, err = r.ReadAll(context.Background())
		assert.ErrorIs(t, err, ErrConsumed)

		_, _, err = r.Iterator().Next(context.Background())
		assert.ErrorIs(t, err, ErrConsumed)
	})

	t.Run("configuration errors", func(t *testing.T) {
		_, err := NewReader[int](nil, parseInt).ReadAll(context.Background())
		assert.ErrorIs(t, err, ErrNoSource)

		r := NewReader[int](Records(rowsOf("1")), nil)
		_, err = r.ReadAll(context.Background())
		assert.ErrorIs(t, err, ErrNoConverter)
	})

	t.Run("source error aborts", func(t *testing.T) {
		boom := errors.New("disk on fire")
		calls := 0
		src := FromFunc(func(context.Context) (Record, bool, error) {
			calls++
			if calls == 3 {
				return Record{}, false, boom
			}
			return Record{Line: int64(calls), Fields: []string{strconv.Itoa(calls)}}, true, nil
		})

		_, err := NewReader(src, parseInt).ReadAll(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "reading input")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		got, err := NewReader(Records(numberRows(10)), parseInt).ReadAll(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, got)
	})

	t.Run("await timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		convert := func(_ context.Context, rec Record) (int, error) {
			<-release
			return 0, nil
		}

		r := NewReader(Records(rowsOf("1")), convert, WithAwaitTimeout(20*time.Millisecond))
		_, err := r.ReadAll(context.Background())
		assert.ErrorIs(t, err, ErrAwaitTimeout)
	})

	t.Run("rate limit", func(t *testing.T) {
		r := NewReader(Records(numberRows(5)), parseInt,
			WithWorkerCount(5),
			WithRateLimit(50, 1),
		)

		start := time.Now()
		got, err := r.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, got, 5)
		assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	})
}
