package output

import (
	"sync/atomic"
	"time"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// Progress counts targets as they move through the pool. It is safe for
// concurrent use by workers.
type Progress struct {
	total      int
	started    atomic.Int64
	completed  atomic.Int64
	vulnerable atomic.Int64
	skipped    atomic.Int64
	exploits   atomic.Int64
	start      time.Time
}

func NewProgress(total int) *Progress {
	return &Progress{total: total, start: time.Now()}
}

// Start records a target entering the pool and returns its 1-based ordinal.
func (p *Progress) Start() int {
	return int(p.started.Add(1))
}

func (p *Progress) Total() int { return p.total }

// Record accounts for a finished result. Interrupted results are ignored.
func (p *Progress) Record(r *scanner.ScanResult) {
	if !r.Completed() {
		return
	}
	p.completed.Add(1)
	if r.State == scanner.StateSkipped {
		p.skipped.Add(1)
	}
	if r.Vulnerable {
		p.vulnerable.Add(1)
	}
	p.exploits.Add(int64(len(r.ExploitFiles)))
}

// Stats snapshots the counters. paused is subtracted from the elapsed time.
func (p *Progress) Stats(paused time.Duration) Stats {
	return Stats{
		Targets:    p.total,
		Completed:  int(p.completed.Load()),
		Vulnerable: int(p.vulnerable.Load()),
		Skipped:    int(p.skipped.Load()),
		Exploits:   int(p.exploits.Load()),
		Duration:   time.Since(p.start) - paused,
	}
}
