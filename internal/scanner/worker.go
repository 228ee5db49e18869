package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/zabe-dev/smuggler/internal/target"
)

// PoolConfig holds options for the target worker pool.
type PoolConfig struct {
	Threads int           // concurrent targets; 1 keeps the run fully sequential
	Delay   time.Duration // pause after each target when more than one is queued
}

// Indexed pairs a result with the position of its input so callers can
// restore list order.
type Indexed struct {
	Index  int
	Result *ScanResult
}

type job struct {
	index int
	raw   string
}

// RunPool scans inputs across cfg.Threads workers and returns a channel of
// results that is closed when every dispatched target has finished. Once
// ctx is cancelled no new targets are dispatched.
func RunPool(ctx context.Context, s *Scanner, inputs []string, cfg PoolConfig) <-chan Indexed {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	if threads > len(inputs) && len(inputs) > 0 {
		threads = len(inputs)
	}

	jobs := make(chan job)
	results := make(chan Indexed, threads)
	gate := NewHostGate()

	go func() {
		defer close(jobs)
		for i, raw := range inputs {
			select {
			case jobs <- job{index: i, raw: raw}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					return
				}
				key := gateKey(j.raw)
				if err := gate.Acquire(ctx, key); err != nil {
					return
				}
				res := s.Scan(ctx, j.raw)
				gate.Release(key)
				results <- Indexed{Index: j.index, Result: res}

				if len(inputs) > 1 && cfg.Delay > 0 {
					t := time.NewTimer(cfg.Delay)
					select {
					case <-t.C:
					case <-ctx.Done():
						t.Stop()
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// gateKey groups inputs by connection endpoint; unparsable inputs gate on
// their raw text.
func gateKey(raw string) string {
	t, err := target.Parse(raw)
	if err != nil {
		return raw
	}
	return t.Addr()
}
