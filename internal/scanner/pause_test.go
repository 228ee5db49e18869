package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPauserWaitNotPaused(t *testing.T) {
	p := NewPauser()
	done := make(chan error, 1)
	go func() { done <- p.Wait(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() blocked when not paused")
	}
}

func TestPauserToggle(t *testing.T) {
	p := NewPauser()
	if p.IsPaused() {
		t.Fatal("expected running initially")
	}
	if !p.Toggle() || !p.IsPaused() {
		t.Fatal("first Toggle should pause")
	}
	if p.Toggle() || p.IsPaused() {
		t.Fatal("second Toggle should resume")
	}
}

func TestPauserBlocksUntilResume(t *testing.T) {
	p := NewPauser()
	p.Toggle()

	var wg sync.WaitGroup
	released := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Wait(context.Background())
			released <- struct{}{}
		}()
	}

	select {
	case <-released:
		t.Fatal("Wait returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	p.Toggle()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiters not released after resume")
	}
}

func TestPauserWaitCancelled(t *testing.T) {
	p := NewPauser()
	p.Toggle()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestPauserNil(t *testing.T) {
	var p *Pauser
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("nil Wait() = %v", err)
	}
	if d := p.PausedDuration(); d != 0 {
		t.Errorf("nil PausedDuration() = %v", d)
	}
}

func TestPauserDuration(t *testing.T) {
	p := NewPauser()
	p.Toggle()
	time.Sleep(50 * time.Millisecond)
	p.Toggle()
	p.Toggle()
	time.Sleep(50 * time.Millisecond)
	p.Toggle()

	total := p.PausedDuration()
	if total < 80*time.Millisecond || total > 400*time.Millisecond {
		t.Fatalf("expected ~100ms accumulated pause, got %s", total)
	}
}
