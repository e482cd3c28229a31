// Package server supervises the goroutines that serialize external command
// flow (TCP connections) onto the single-threaded matching engine: a fixed
// worker pool and a tomb-based process supervisor.
package server

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultTaskQueueSize = 100

// WorkerFunction processes one task. Returning a non-nil error is fatal to
// the worker that returned it and is surfaced to the owning tomb.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of goroutines draining a shared task
// channel, supervised by a tomb.Tomb so the pool shuts down cleanly with
// the rest of the process.
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool returns a pool sized for size concurrent workers.
func NewWorkerPool(size uint) WorkerPool {
	return WorkerPool{
		n:     int(size),
		tasks: make(chan any, defaultTaskQueueSize),
	}
}

// AddTask enqueues a unit of work for the pool. Blocks if the queue is full.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup starts pool.n workers under t, each running work against tasks
// pulled off the shared channel until t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	for id := 0; id < pool.n; id++ {
		id := id
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// worker drains tasks until the channel closes or t is dying.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task, ok := <-pool.tasks:
			if !ok {
				return nil
			}
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
