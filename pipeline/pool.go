package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// poolState is the lifecycle state of a failFastPool.
type poolState int32

const (
	stateAccepting poolState = iota
	stateShuttingDown
	stateStopped
)

func (s poolState) String() string {
	switch s {
	case stateAccepting:
		return "accepting"
	case stateShuttingDown:
		return "shutting down"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// runnable is a unit of work executed by a pool worker.
type runnable interface {
	run(ctx context.Context)
}

// failFastPool is a fixed-size worker pool that stops on the first recorded
// terminal error.
//
// Workers pull tasks from one shared submission channel. A normal shutdown
// lets workers drain the channel; an abort (shutdownNow) discards queued
// tasks while in-flight tasks finish. In both cases termination is observable
// through awaitTermination.
type failFastPool struct {
	workerCount int
	tasks       chan runnable
	quit        chan struct{} // closed on abort
	done        chan struct{} // closed when all workers have exited

	terminal terminalCell
	state    atomic.Int32
	active   atomic.Int32

	closeOnce sync.Once
	abortOnce sync.Once
}

// newFailFastPool creates an unstarted pool.
func newFailFastPool(workerCount, taskBuffer int) *failFastPool {
	return &failFastPool{
		workerCount: max(workerCount, 1),
		tasks:       make(chan runnable, max(taskBuffer, 0)),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// start launches the workers. Cancelling ctx aborts the pool with ctx's error.
func (p *failFastPool) start(ctx context.Context) {
	var g errgroup.Group

	p.active.Store(int32(p.workerCount)) // #nosec G115 -- worker count is a small positive int
	for range p.workerCount {
		g.Go(func() error {
			defer p.active.Add(-1)
			return p.worker(ctx)
		})
	}

	go func() {
		_ = g.Wait()
		p.state.Store(int32(stateStopped))
		close(p.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			p.fail(&failure{err: ctx.Err()})
		case <-p.done:
		}
	}()
}

// worker runs tasks until the submission channel is closed and drained, or
// until the pool is aborted.
func (p *failFastPool) worker(ctx context.Context) error {
	for {
		select {
		case <-p.quit:
			return nil
		case t, ok := <-p.tasks:
			if !ok {
				return nil
			}
			// Both cases may be ready at once; queued work is discarded after abort.
			select {
			case <-p.quit:
				return nil
			default:
			}
			t.run(ctx)
		}
	}
}

// submit hands t to the workers. It blocks while the submission buffer is
// full and returns ErrPoolRejected once the pool stopped accepting work.
// submit and shutdown must be called from the same goroutine.
func (p *failFastPool) submit(t runnable) error {
	if poolState(p.state.Load()) != stateAccepting || p.terminal.load() != nil {
		return ErrPoolRejected
	}

	select {
	case p.tasks <- t:
		return nil
	case <-p.quit:
		return ErrPoolRejected
	}
}

// shutdown stops accepting tasks and lets workers drain what was submitted.
func (p *failFastPool) shutdown() {
	p.closeOnce.Do(func() {
		p.state.CompareAndSwap(int32(stateAccepting), int32(stateShuttingDown))
		close(p.tasks)
	})
}

// shutdownNow aborts the pool: queued tasks are discarded and workers exit
// after their current task.
func (p *failFastPool) shutdownNow() {
	p.abortOnce.Do(func() {
		p.state.CompareAndSwap(int32(stateAccepting), int32(stateShuttingDown))
		close(p.quit)
	})
}

// fail records f as the terminal error if none was recorded yet and aborts
// the pool. It reports whether f was recorded.
func (p *failFastPool) fail(f *failure) bool {
	if !p.terminal.set(f) {
		return false
	}
	p.shutdownNow()
	return true
}

// awaitTermination blocks until every worker has exited.
// A zero timeout waits indefinitely.
func (p *failFastPool) awaitTermination(timeout time.Duration) error {
	return waitUntil(p.done, timeout)
}

// terminalError returns the recorded terminal failure, or nil.
func (p *failFastPool) terminalError() *failure {
	return p.terminal.load()
}

// activeWorkers returns the number of workers that have not exited yet.
func (p *failFastPool) activeWorkers() int {
	return int(p.active.Load())
}

func (p *failFastPool) currentState() poolState {
	return poolState(p.state.Load())
}

// waitUntil blocks until either the done channel is closed or the timeout is reached.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	select {
	case <-d:
		return nil
	case <-time.After(timeout):
		return ErrAwaitTimeout
	}
}
