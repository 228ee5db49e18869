package scanner

import (
	"context"
	"sync"
)

// HostGate ensures only one scan per host:port runs at a time, so targets
// sharing a back end never interleave their probes.
type HostGate struct {
	mu   sync.Mutex
	busy map[string]chan struct{}
}

func NewHostGate() *HostGate {
	return &HostGate{busy: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done.
func (g *HostGate) Acquire(ctx context.Context, key string) error {
	for {
		g.mu.Lock()
		wait, held := g.busy[key]
		if !held {
			g.busy[key] = make(chan struct{})
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees key and wakes any waiters.
func (g *HostGate) Release(key string) {
	g.mu.Lock()
	ch, held := g.busy[key]
	delete(g.busy, key)
	g.mu.Unlock()
	if held {
		close(ch)
	}
}
