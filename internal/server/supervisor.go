package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Supervisor owns the process-level context and tomb that other components
// (the TCP gateway, background loggers) run under, using a context+cancel
// server lifecycle shape.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	tomb   *tomb.Tomb
}

// New creates a Supervisor whose context is derived from ctx.
func New(ctx context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)
	return &Supervisor{ctx: ctx, cancel: cancel, tomb: t}
}

// Context returns the supervisor's context, cancelled on Shutdown.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Tomb returns the supervisor's tomb, for components (like a WorkerPool)
// that need to start goroutines under it directly.
func (s *Supervisor) Tomb() *tomb.Tomb {
	return s.tomb
}

// Go runs fn under the supervisor's tomb.
func (s *Supervisor) Go(fn func() error) {
	s.tomb.Go(fn)
}

// Shutdown cancels the supervisor's context and waits for every goroutine
// started with Go to finish.
func (s *Supervisor) Shutdown() error {
	s.cancel()
	return s.tomb.Wait()
}

// RunEvery runs fn on the given interval until the supervisor's context is
// cancelled, logging any error fn returns rather than treating it as fatal.
func RunEvery(s *Supervisor, interval time.Duration, fn func()) {
	s.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return nil
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error().Interface("panic", r).Msg("periodic task panicked")
						}
					}()
					fn()
				}()
			}
		}
	})
}
