// Package seqmap implements the sequence-number keyed ordered map used to
// restore input order after out-of-order completion.
package seqmap

import (
	"math/bits"
	"math/rand/v2"
)

const (
	// defaultMaxLevel defines the maximum height of the skip list.
	// A value of 16 provides good performance for up to ~65,536 elements
	// and degrades gracefully past that.
	defaultMaxLevel = 16
)

// node represents a node in the skip list structure.
type node[V any] struct {
	key   int64
	value V

	// nextAtLevel contains forward pointers for each level.
	// Level 0 points to the next node in sorted order,
	// higher levels provide express lanes for faster search.
	nextAtLevel [defaultMaxLevel]*node[V]

	level int
}

// Map is an ordered map from sequence number to value backed by a skip list.
//
// Insertion is O(log n) on average regardless of arrival order, and
// iteration is always in ascending key order. Map is not safe for
// concurrent use; it is owned by exactly one goroutine at a time.
type Map[V any] struct {
	// head is a sentinel node that simplifies boundary conditions.
	head *node[V]

	// level tracks the current maximum level of the skip list.
	level int

	size int
}

// New creates an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{
		head:  &node[V]{level: defaultMaxLevel},
		level: 1,
	}
}

// Put stores value under key, replacing any existing value.
//
// Time complexity: O(log n) average, O(n) worst case.
func (m *Map[V]) Put(key int64, value V) {
	var update [defaultMaxLevel]*node[V]

	curr := m.head
	for l := m.level - 1; l >= 0; l-- {
		for next := curr.nextAtLevel[l]; next != nil && next.key < key; next = curr.nextAtLevel[l] {
			curr = next
		}
		update[l] = curr
	}

	if candidate := update[0].nextAtLevel[0]; candidate != nil && candidate.key == key {
		candidate.value = value
		return
	}

	newLevel := randomLevel()
	if newLevel > m.level {
		for i := m.level; i < newLevel; i++ {
			update[i] = m.head
		}
		m.level = newLevel
	}

	n := &node[V]{key: key, value: value, level: newLevel}
	for i := range newLevel {
		n.nextAtLevel[i] = update[i].nextAtLevel[i]
		update[i].nextAtLevel[i] = n
	}
	m.size++
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key int64) (V, bool) {
	curr := m.head
	for l := m.level - 1; l >= 0; l-- {
		for next := curr.nextAtLevel[l]; next != nil && next.key < key; next = curr.nextAtLevel[l] {
			curr = next
		}
	}

	if n := curr.nextAtLevel[0]; n != nil && n.key == key {
		return n.value, true
	}
	var zero V
	return zero, false
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	return m.size
}

// Ascend calls fn for every entry in ascending key order until fn returns false.
func (m *Map[V]) Ascend(fn func(key int64, value V) bool) {
	for n := m.head.nextAtLevel[0]; n != nil; n = n.nextAtLevel[0] {
		if !fn(n.key, n.value) {
			return
		}
	}
}

// Values returns all values in ascending key order.
func (m *Map[V]) Values() []V {
	out := make([]V, 0, m.size)
	m.Ascend(func(_ int64, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Keys returns all keys in ascending order.
func (m *Map[V]) Keys() []int64 {
	out := make([]int64, 0, m.size)
	m.Ascend(func(k int64, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

// randomLevel generates a random level for a new skip list node.
//
// A single random 64-bit integer is drawn and its trailing zeros counted,
// which yields a geometric distribution with p=0.5, capped at defaultMaxLevel.
func randomLevel() int {
	random := rand.Uint64() // #nosec G404 -- non-cryptographic use for skip list level distribution
	level := bits.TrailingZeros64(random) + 1
	if level > defaultMaxLevel {
		return defaultMaxLevel
	}
	return level
}
