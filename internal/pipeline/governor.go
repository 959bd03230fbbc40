package pipeline

import (
	"context"
	"sync/atomic"
)

// Governor caps how many documents may hold rasterized page images in memory
// at once. Slots are acquired before rasterization and released as soon as
// recognition for the document finishes, so extraction never pins image
// memory. The counters exist so tests can observe the bound.
type Governor struct {
	sem       chan struct{}
	inUse     atomic.Int64
	highWater atomic.Int64
}

// NewGovernor creates a governor with the given capacity. Capacity below 1 is
// clamped to 1.
func NewGovernor(capacity int) *Governor {
	if capacity < 1 {
		capacity = 1
	}
	return &Governor{sem: make(chan struct{}, capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Governor) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	n := g.inUse.Add(1)
	for {
		hw := g.highWater.Load()
		if n <= hw || g.highWater.CompareAndSwap(hw, n) {
			break
		}
	}
	return nil
}

// Release frees a slot.
func (g *Governor) Release() {
	g.inUse.Add(-1)
	<-g.sem
}

// InUse returns the number of currently held slots.
func (g *Governor) InUse() int { return int(g.inUse.Load()) }

// HighWater returns the maximum number of slots ever held simultaneously.
func (g *Governor) HighWater() int { return int(g.highWater.Load()) }

// Capacity returns the configured bound.
func (g *Governor) Capacity() int { return cap(g.sem) }
