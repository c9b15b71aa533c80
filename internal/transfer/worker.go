package transfer

import (
	"context"
	"errors"
	"sync"
)

// ErrWorkerStopped is returned by Submit after Stop.
var ErrWorkerStopped = errors.New("worker stopped")

// Job is a unit of store work run on the worker goroutine.
type Job func(ctx context.Context) error

type request struct {
	ctx    context.Context
	job    Job
	result chan error
}

// Worker runs submitted jobs one at a time on a single background goroutine,
// so at most one transaction is ever open against the store.
type Worker struct {
	jobs     chan request
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWorker() *Worker {
	w := &Worker{
		jobs: make(chan request),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case req := <-w.jobs:
			req.result <- req.job(req.ctx)
		case <-w.quit:
			return
		}
	}
}

// Submit queues job and blocks until it has run. Once the job has started
// it runs to completion; ctx only bounds the wait for a free worker.
func (w *Worker) Submit(ctx context.Context, job Job) error {
	req := request{ctx: ctx, job: job, result: make(chan error, 1)}

	select {
	case w.jobs <- req:
		return <-req.result
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrWorkerStopped
	}
}

// Stop waits for the running job, if any, and shuts the worker down.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
}
