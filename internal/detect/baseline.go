// Package detect decides whether a target desynchronizes on ambiguous
// framing by comparing probe latency against a normal-request baseline.
package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zabe-dev/smuggler/internal/transport"
)

// ErrBaselineInsufficient means too few normal requests succeeded to trust
// the target's timing.
var ErrBaselineInsufficient = errors.New("insufficient baseline samples")

const (
	DefaultBaselineAttempts = 5
	DefaultBaselineSpacing  = 300 * time.Millisecond
	MinBaselineSamples      = 3
)

// Prober sends one payload on a fresh connection.
type Prober interface {
	Do(ctx context.Context, payload []byte) transport.Outcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, payload []byte) transport.Outcome

func (f ProberFunc) Do(ctx context.Context, payload []byte) transport.Outcome { return f(ctx, payload) }

// Baseline is the target's response-time distribution for normal requests.
type Baseline struct {
	Mean    time.Duration
	StdDev  time.Duration
	Samples []time.Duration
}

// NewBaseline summarizes samples. It needs at least MinBaselineSamples.
func NewBaseline(samples []time.Duration) (*Baseline, error) {
	if len(samples) < MinBaselineSamples {
		return nil, fmt.Errorf("%w: %d of %d needed", ErrBaselineInsufficient, len(samples), MinBaselineSamples)
	}
	return &Baseline{
		Mean:    Mean(samples),
		StdDev:  StdDev(samples),
		Samples: append([]time.Duration(nil), samples...),
	}, nil
}

// Estimator measures a Baseline by sending normal requests one at a time.
type Estimator struct {
	Prober   Prober
	Attempts int
	Spacing  time.Duration

	// OnOutcome, if set, sees every attempt.
	OnOutcome func(attempt int, o transport.Outcome)
}

// Estimate sends Attempts copies of normal, keeping the elapsed time of
// each successful one. Context cancellation is honored between attempts.
func (e *Estimator) Estimate(ctx context.Context, normal []byte) (*Baseline, error) {
	attempts := e.Attempts
	if attempts <= 0 {
		attempts = DefaultBaselineAttempts
	}

	var samples []time.Duration
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := e.Prober.Do(ctx, normal)
		if e.OnOutcome != nil {
			e.OnOutcome(i+1, o)
		}
		if o.Status == transport.StatusOK {
			samples = append(samples, o.Elapsed)
		}
		if i < attempts-1 {
			if err := sleep(ctx, e.Spacing); err != nil {
				return nil, err
			}
		}
	}
	return NewBaseline(samples)
}

// Mean is the arithmetic mean; zero for no samples.
func Mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	return time.Duration(sum / float64(len(samples)))
}

// StdDev is the sample standard deviation (n-1); zero for fewer than two samples.
func StdDev(samples []time.Duration) time.Duration {
	if len(samples) < 2 {
		return 0
	}
	mean := float64(Mean(samples))
	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(samples)-1)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
