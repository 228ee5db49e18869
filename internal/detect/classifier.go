package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zabe-dev/smuggler/internal/transport"
)

// ErrProbeInconclusive means fewer than two probe attempts produced a
// timing, so no decision was made.
var ErrProbeInconclusive = errors.New("probe inconclusive")

const (
	DefaultRounds     = 3
	DefaultProbePause = 500 * time.Millisecond

	minProbeSamples = 2
	highTimeouts    = 2
)

// Class names a desync technique, or a combination of them.
type Class string

const (
	ClassNone Class = ""
	ClassCLTE Class = "CL.TE"
	ClassTECL Class = "TE.CL"
	ClassBoth Class = "CL.TE+TE.CL"
)

// Tag is the short form used in artifact names.
func (c Class) Tag() string {
	switch c {
	case ClassCLTE:
		return "CLTE"
	case ClassTECL:
		return "TECL"
	default:
		return "NONE"
	}
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
)

// Verdict is the decision for one probe class.
type Verdict struct {
	Class        Class         `json:"class"`
	Vulnerable   bool          `json:"vulnerable"`
	Confidence   Confidence    `json:"confidence,omitempty"`
	Inconclusive bool          `json:"inconclusive,omitempty"`
	Timeouts     int           `json:"timeouts"`
	Rounds       int           `json:"rounds"`
	ProbeMean    time.Duration `json:"probe_mean"`
	NormalMean   time.Duration `json:"normal_mean"`
	Evidence     string        `json:"evidence,omitempty"`
}

// Classifier interleaves probe and normal requests and decides.
type Classifier struct {
	Prober  Prober
	Rounds  int
	Pause   time.Duration
	Timeout time.Duration // latency recorded for a timed-out probe

	// OnOutcome, if set, sees every request; probe is false for the
	// interleaved normal requests.
	OnOutcome func(round int, probe bool, o transport.Outcome)
}

// Classify runs the rounds for one class. It returns ErrProbeInconclusive
// (with a non-vulnerable Verdict) when too few probes produced a timing,
// and the context error if interrupted between requests.
func (c *Classifier) Classify(ctx context.Context, class Class, probe, normal []byte, base *Baseline) (Verdict, error) {
	rounds := c.Rounds
	if rounds <= 0 {
		rounds = DefaultRounds
	}

	var (
		probeTimes  []time.Duration
		normalTimes []time.Duration
		timeouts    int
	)
	for r := 1; r <= rounds; r++ {
		if err := ctx.Err(); err != nil {
			return Verdict{Class: class}, err
		}
		o := c.Prober.Do(ctx, probe)
		c.observe(r, true, o)
		switch o.Status {
		case transport.StatusTimeout:
			timeouts++
			probeTimes = append(probeTimes, c.Timeout)
		case transport.StatusOK:
			probeTimes = append(probeTimes, o.Elapsed)
		}
		if err := sleep(ctx, c.Pause); err != nil {
			return Verdict{Class: class}, err
		}

		o = c.Prober.Do(ctx, normal)
		c.observe(r, false, o)
		if o.Status == transport.StatusOK {
			normalTimes = append(normalTimes, o.Elapsed)
		}
		if err := sleep(ctx, c.Pause); err != nil {
			return Verdict{Class: class}, err
		}
	}

	return Decide(class, rounds, probeTimes, normalTimes, timeouts, base)
}

func (c *Classifier) observe(round int, probe bool, o transport.Outcome) {
	if c.OnOutcome != nil {
		c.OnOutcome(round, probe, o)
	}
}

// Decide applies the decision policy to recorded timings. Timeouts must
// already be present in probeTimes at the configured timeout value.
func Decide(class Class, rounds int, probeTimes, normalTimes []time.Duration, timeouts int, base *Baseline) (Verdict, error) {
	v := Verdict{Class: class, Timeouts: timeouts, Rounds: rounds}
	if len(probeTimes) < minProbeSamples {
		v.Inconclusive = true
		return v, fmt.Errorf("%s: %w: %d usable probe samples", class, ErrProbeInconclusive, len(probeTimes))
	}

	v.ProbeMean = Mean(probeTimes)
	if len(normalTimes) > 0 {
		v.NormalMean = Mean(normalTimes)
	} else if base != nil {
		v.NormalMean = base.Mean
	}
	var stddev time.Duration
	if base != nil {
		stddev = base.StdDev
	}
	ratio := 0.0
	if v.NormalMean > 0 {
		ratio = float64(v.ProbeMean) / float64(v.NormalMean)
	}

	switch {
	case timeouts >= highTimeouts:
		v.Vulnerable = true
		v.Confidence = ConfidenceHigh
		v.Evidence = fmt.Sprintf("Timeout ratio: %d/%d, timing diff: %.1fx", timeouts, rounds, ratio)
	case v.ProbeMean > v.NormalMean+2*stddev && v.ProbeMean > 2*v.NormalMean:
		v.Vulnerable = true
		v.Confidence = ConfidenceMedium
		v.Evidence = fmt.Sprintf("Timing difference: %.1fx", ratio)
	}
	return v, nil
}

// Merge combines per-class verdicts into the target-level class. The
// confidence is that of the first vulnerable verdict.
func Merge(verdicts ...Verdict) (Class, Confidence) {
	var (
		class Class
		conf  Confidence
	)
	for _, v := range verdicts {
		if !v.Vulnerable {
			continue
		}
		if class == ClassNone {
			class, conf = v.Class, v.Confidence
			continue
		}
		if class != v.Class {
			class = ClassBoth
		}
	}
	return class, conf
}
