package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_ShutdownWaitsForGoroutines(t *testing.T) {
	sup := New(context.Background())

	var stopped atomic.Bool
	sup.Go(func() error {
		<-sup.Context().Done()
		stopped.Store(true)
		return nil
	})

	require.NoError(t, sup.Shutdown())
	assert.True(t, stopped.Load())
}

func TestRunEvery_StopsWhenSupervisorShutsDown(t *testing.T) {
	sup := New(context.Background())

	var ticks atomic.Int32
	RunEvery(sup, 5*time.Millisecond, func() {
		ticks.Add(1)
	})

	require.Eventually(t, func() bool {
		return ticks.Load() > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, sup.Shutdown())
}

func TestRunEvery_RecoversPanicInTask(t *testing.T) {
	sup := New(context.Background())

	var ran atomic.Bool
	RunEvery(sup, 5*time.Millisecond, func() {
		ran.Store(true)
		panic("boom")
	})

	require.Eventually(t, func() bool {
		return ran.Load()
	}, time.Second, time.Millisecond)

	require.NoError(t, sup.Shutdown())
}
