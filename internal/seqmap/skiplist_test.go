package seqmap

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_New(t *testing.T) {
	m := New[string]()

	require.NotNil(t, m.head)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, m.level)
	assert.Empty(t, m.Values())
}

func TestMap_Put(t *testing.T) {
	t.Run("keeps ascending order for out of order inserts", func(t *testing.T) {
		m := New[string]()
		for _, k := range []int64{5, 2, 8, 1, 9, 3} {
			m.Put(k, string(rune('a'+k)))
		}

		assert.Equal(t, 6, m.Len())
		assert.Equal(t, []int64{1, 2, 3, 5, 8, 9}, m.Keys())
		assert.Equal(t, []string{"b", "c", "d", "f", "i", "j"}, m.Values())
	})

	t.Run("replaces value for duplicate key", func(t *testing.T) {
		m := New[int]()
		m.Put(7, 1)
		m.Put(7, 2)

		assert.Equal(t, 1, m.Len())
		v, ok := m.Get(7)
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("restores order of a shuffled sequence", func(t *testing.T) {
		const n = 5000
		keys := make([]int64, n)
		for i := range keys {
			keys[i] = int64(i + 1)
		}
		rand.Shuffle(n, func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

		m := New[int64]()
		for _, k := range keys {
			m.Put(k, k*10)
		}

		require.Equal(t, n, m.Len())
		values := m.Values()
		for i, v := range values {
			assert.Equal(t, int64(i+1)*10, v)
		}
	})
}

func TestMap_Get(t *testing.T) {
	m := New[string]()
	m.Put(10, "ten")
	m.Put(20, "twenty")

	v, ok := m.Get(20)
	assert.True(t, ok)
	assert.Equal(t, "twenty", v)

	_, ok = m.Get(15)
	assert.False(t, ok)

	_, ok = m.Get(0)
	assert.False(t, ok)
}

func TestMap_AscendStopsEarly(t *testing.T) {
	m := New[int]()
	for i := range 10 {
		m.Put(int64(i), i)
	}

	var seen []int
	m.Ascend(func(_ int64, v int) bool {
		seen = append(seen, v)
		return len(seen) < 3
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestRandomLevel(t *testing.T) {
	for range 1000 {
		l := randomLevel()
		assert.GreaterOrEqual(t, l, 1)
		assert.LessOrEqual(t, l, defaultMaxLevel)
	}
}
