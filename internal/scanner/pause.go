package scanner

import (
	"context"
	"sync"
	"time"
)

// Pauser is a cooperative pause gate checked by the scanner between
// steps. A request already on the wire is never interrupted.
type Pauser struct {
	mu          sync.Mutex
	resume      chan struct{} // closed on resume; nil while running
	pausedSince time.Time
	totalPaused time.Duration
}

// NewPauser returns a running Pauser.
func NewPauser() *Pauser {
	return &Pauser{}
}

// Wait blocks while paused. It returns early with the context error if
// ctx is cancelled.
func (p *Pauser) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	p.mu.Lock()
	ch := p.resume
	p.mu.Unlock()
	if ch == nil {
		return ctx.Err()
	}
	select {
	case <-ch:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Toggle flips between paused and running and reports whether the gate
// is now paused.
func (p *Pauser) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume != nil {
		p.totalPaused += time.Since(p.pausedSince)
		close(p.resume)
		p.resume = nil
		return false
	}
	p.resume = make(chan struct{})
	p.pausedSince = time.Now()
	return true
}

func (p *Pauser) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resume != nil
}

// PausedDuration is the total time spent paused, including a pause in
// progress. Scan durations subtract it.
func (p *Pauser) PausedDuration() time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.totalPaused
	if p.resume != nil {
		d += time.Since(p.pausedSince)
	}
	return d
}
