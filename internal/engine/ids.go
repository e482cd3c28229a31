package engine

import (
	"sync/atomic"
	"time"
)

// IDGenerator mints monotonically increasing uint64s. Execution-id
// generation is an atomic counter injected at engine construction so tests
// get deterministic sequences.
type IDGenerator struct {
	counter atomic.Uint64
}

// NewIDGenerator returns a generator whose first Next() is 1 (0 is reserved
// as "no id" at the wire boundary).
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next() uint64 {
	return g.counter.Add(1)
}

// Clock supplies "now" for ts_received/ts_executed stamping when a caller
// doesn't provide explicit timestamps. Injectable for deterministic tests,
// same rationale as IDGenerator.
type Clock interface {
	Now() uint64
}

type systemClock struct{}

func (systemClock) Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// NewSystemClock returns a Clock backed by the wall clock, in nanoseconds.
func NewSystemClock() Clock {
	return systemClock{}
}
