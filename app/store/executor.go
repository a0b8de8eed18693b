package store

import (
	"sync"
	"time"
)

// executor is the write-behind worker pool: no idle workers at rest, grows up
// to maxWorkers under load, workers retire after idleTTL without work.
// Handoff is synchronous - a task is accepted only if a worker is ready to
// take it or a new one can be spawned. With blocking enabled a saturated
// submit waits for a free worker instead of failing.
type executor struct {
	tasks    chan func()
	slots    chan struct{} // one element per live worker
	idleTTL  time.Duration
	blocking bool

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

func newExecutor(maxWorkers int, idleTTL time.Duration, blocking bool) *executor {
	return &executor{
		tasks:    make(chan func()),
		slots:    make(chan struct{}, maxWorkers),
		idleTTL:  idleTTL,
		blocking: blocking,
		done:     make(chan struct{}),
	}
}

// submit hands the task to the pool. Returns false if the pool is closed, or
// saturated in non-blocking mode. Must not be called concurrently with close.
func (e *executor) submit(task func()) bool {
	select {
	case <-e.done:
		return false
	default:
	}

	e.wg.Add(1)
	wrapped := func() {
		defer e.wg.Done()
		task()
	}

	select {
	case e.tasks <- wrapped: // an idle worker picked it up
		return true
	default:
	}

	select {
	case e.slots <- struct{}{}: // room for one more worker
		go e.worker(wrapped)
		return true
	default:
	}

	if !e.blocking {
		e.wg.Done()
		return false
	}

	// wait for a ready worker, but keep the spawn path open too - every
	// busy worker may retire before the handoff completes
	select {
	case e.tasks <- wrapped:
		return true
	case e.slots <- struct{}{}:
		go e.worker(wrapped)
		return true
	case <-e.done:
		e.wg.Done()
		return false
	}
}

// worker runs the first task and then serves the handoff channel until idle
// for idleTTL or the pool is closed.
func (e *executor) worker(task func()) {
	defer func() { <-e.slots }()

	idle := time.NewTimer(e.idleTTL)
	defer idle.Stop()

	for {
		task()

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(e.idleTTL)

		select {
		case task = <-e.tasks:
		case <-idle.C:
			return
		case <-e.done:
			return
		}
	}
}

// active reports the number of live workers.
func (e *executor) active() int { return len(e.slots) }

// close stops accepting tasks and waits for in-flight ones to finish.
func (e *executor) close() {
	e.closeOnce.Do(func() { close(e.done) })
	e.wg.Wait()
}
