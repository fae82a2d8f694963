package crawler

import (
	"context"
	"sync"
)

// layerBarrier counts the outstanding work of one BFS layer. Each layer
// starts with a single party held by the controller, so the layer cannot
// look drained while its URLs are still being dispatched. Workers register
// before handing work on and arrive when a unit finishes, whatever the outcome.
type layerBarrier struct {
	mu         sync.Mutex
	parties    int
	generation int
	drained    chan struct{}
}

// begin opens the next generation with the controller as its only party.
func (b *layerBarrier) begin() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
	b.parties = 1
	b.drained = make(chan struct{})
	return b.generation
}

func (b *layerBarrier) register() {
	b.mu.Lock()
	b.parties++
	b.mu.Unlock()
}

// arrive deregisters one party and releases waiters when none remain.
func (b *layerBarrier) arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parties == 0 {
		return
	}
	b.parties--
	if b.parties == 0 {
		close(b.drained)
	}
}

// awaitAdvance blocks until the current generation drains or ctx is done.
func (b *layerBarrier) awaitAdvance(ctx context.Context) error {
	b.mu.Lock()
	drained := b.drained
	b.mu.Unlock()

	if drained == nil {
		return nil
	}
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *layerBarrier) outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parties
}
