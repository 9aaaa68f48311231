package pipeline

import (
	"sync"

	"github.com/utkarsh5026/rowpipe/internal/queue"
	"github.com/utkarsh5026/rowpipe/internal/seqmap"
)

// accumulator restores input order by draining the results and errors
// queues into sequence-keyed ordered maps on a dedicated goroutine.
//
// The maps belong to the accumulator goroutine until join returns; only then
// may the controller read them.
type accumulator[O any] struct {
	results *queue.Queue[Sequenced[O]]
	errs    *queue.Queue[*CapturedError]

	resultSet *seqmap.Map[O]
	errorSet  *seqmap.Map[*CapturedError]

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newAccumulator[O any](results *queue.Queue[Sequenced[O]], errs *queue.Queue[*CapturedError]) *accumulator[O] {
	return &accumulator[O]{
		results:   results,
		errs:      errs,
		resultSet: seqmap.New[O](),
		errorSet:  seqmap.New[*CapturedError](),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// start launches the accumulator goroutine.
func (a *accumulator[O]) start() {
	go a.loop()
}

func (a *accumulator[O]) loop() {
	defer close(a.done)

	for {
		select {
		case <-a.results.Ready():
			a.drain()
		case <-a.errs.Ready():
			a.drain()
		case <-a.stop:
			// Items pushed before stop was requested are still queued.
			a.drain()
			return
		}
	}
}

// drain moves everything currently queued into the ordered maps.
func (a *accumulator[O]) drain() {
	for {
		item, ok := a.results.TryPop()
		if !ok {
			break
		}
		a.resultSet.Put(item.Sequence, item.Value)
	}

	for {
		ce, ok := a.errs.TryPop()
		if !ok {
			break
		}
		a.errorSet.Put(ce.Sequence, ce)
	}
}

// requestStop asks the accumulator to finish once the queues are drained.
// Safe to call more than once.
func (a *accumulator[O]) requestStop() {
	a.stopOnce.Do(func() {
		close(a.stop)
	})
}

// join blocks until the accumulator goroutine has exited.
func (a *accumulator[O]) join() {
	<-a.done
}

// outputs returns the converted values in ascending sequence order.
// Only valid after join.
func (a *accumulator[O]) outputs() []O {
	return a.resultSet.Values()
}

// captured returns the captured errors in ascending sequence order.
// Only valid after join.
func (a *accumulator[O]) captured() []*CapturedError {
	return a.errorSet.Values()
}
