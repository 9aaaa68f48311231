package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterator_Next(t *testing.T) {
	t.Run("yields items in order", func(t *testing.T) {
		it := NewReader(Records(rowsOf("1", "2", "3")), parseInt).Iterator()

		var got []int
		for {
			v, ok, err := it.Next(context.Background())
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, v)
		}
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("capture mode skips bad items", func(t *testing.T) {
		it := NewReader(Records(rowsOf("x", "y", "3", "z")), parseInt, WithThrowOnError(false)).Iterator()

		v, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 3, v)
		assert.Len(t, it.CapturedErrors(), 2)

		_, ok, err = it.Next(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)

		captured := it.CapturedErrors()
		require.Len(t, captured, 3)
		assert.Equal(t, int64(4), captured[2].Sequence)
	})

	t.Run("throw mode finishes the iterator", func(t *testing.T) {
		it := NewReader(Records(rowsOf("1", "x", "3")), parseInt).Iterator()

		v, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok, err = it.Next(context.Background())
		assert.False(t, ok)
		var convErr *ConversionError
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, int64(2), convErr.Sequence)

		_, ok, err = it.Next(context.Background())
		assert.False(t, ok)
		assert.NoError(t, err)
	})

	t.Run("capture limit", func(t *testing.T) {
		it := NewReader(Records(rowsOf("a", "b", "c")), parseInt,
			WithThrowOnError(false),
			WithCaptureLimit(2),
		).Iterator()

		_, _, err := it.Next(context.Background())
		assert.ErrorIs(t, err, ErrTooManyErrors)
		assert.Len(t, it.CapturedErrors(), 2)
	})

	t.Run("consumes the reader", func(t *testing.T) {
		r := NewReader(Records(rowsOf("1")), parseInt)
		_, _, err := r.Iterator().Next(context.Background())
		require.NoError(t, err)

		_, err = r.ReadAll(context.Background())
		assert.ErrorIs(t, err, ErrConsumed)
	})
}

func TestIterator_All(t *testing.T) {
	t.Run("ranges over every item", func(t *testing.T) {
		it := NewIterator(FromSlice([]string{"a", "bb", "ccc"}), func(_ context.Context, s string) (int, error) {
			return len(s), nil
		})

		var got []int
		for v, err := range it.All(context.Background()) {
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("error is the last element", func(t *testing.T) {
		boom := errors.New("boom")
		it := NewIterator(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
			if n == 2 {
				return 0, boom
			}
			return n, nil
		})

		var got []int
		var lastErr error
		for v, err := range it.All(context.Background()) {
			if err != nil {
				lastErr = err
				continue
			}
			got = append(got, v)
		}
		assert.Equal(t, []int{1}, got)
		assert.ErrorIs(t, lastErr, boom)
	})

	t.Run("early break", func(t *testing.T) {
		it := NewIterator(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
			return n * 10, nil
		})

		for v, err := range it.All(context.Background()) {
			require.NoError(t, err)
			assert.Equal(t, 10, v)
			break
		}

		v, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 20, v)
	})
}
