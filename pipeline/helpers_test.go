package pipeline

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// parseInt converts the first field of a record to an int.
func parseInt(_ context.Context, rec Record) (int, error) {
	n, err := strconv.Atoi(rec.Fields[0])
	if err != nil {
		return 0, TypeMismatch("n", rec.Fields[0], "int").WithCause(err)
	}
	return n, nil
}

// jitter wraps a converter with a short random delay so completion order
// differs from submission order.
func jitter[I, O any](fn ConvertFunc[I, O]) ConvertFunc[I, O] {
	return func(ctx context.Context, in I) (O, error) {
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
		return fn(ctx, in)
	}
}

func numberRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range n {
		rows[i] = []string{strconv.Itoa(i)}
	}
	return rows
}

func rowsOf(values ...string) [][]string {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{v}
	}
	return rows
}

// callLog records the inputs a converter was called with.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// funcTask adapts a function to runnable.
type funcTask func(ctx context.Context)

func (f funcTask) run(ctx context.Context) { f(ctx) }
