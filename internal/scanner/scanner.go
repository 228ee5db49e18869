// Package scanner drives the per-target detection state machine and fans
// targets out over a worker pool.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zabe-dev/smuggler/internal/detect"
	"github.com/zabe-dev/smuggler/internal/exploit"
	"github.com/zabe-dev/smuggler/internal/payload"
	"github.com/zabe-dev/smuggler/internal/target"
	"github.com/zabe-dev/smuggler/internal/transport"
)

// Config holds the per-target scan parameters.
type Config struct {
	Method    string
	UserAgent string
	Timeout   time.Duration
	Smuggled  payload.Smuggled

	BaselineAttempts int
	BaselineSpacing  time.Duration
	Rounds           int
	ProbePause       time.Duration
}

// DefaultConfig returns the stock timing parameters.
func DefaultConfig() Config {
	return Config{
		Method:           "POST",
		UserAgent:        payload.DefaultUserAgent,
		Timeout:          10 * time.Second,
		Smuggled:         payload.Smuggled{Method: "GET", Path: "/hopefully404"},
		BaselineAttempts: detect.DefaultBaselineAttempts,
		BaselineSpacing:  detect.DefaultBaselineSpacing,
		Rounds:           detect.DefaultRounds,
		ProbePause:       detect.DefaultProbePause,
	}
}

// Scanner runs BASELINE, PROBE_CLTE, PROBE_TECL and EXPLOIT_WRITE against
// one target at a time. Requests within a target are strictly sequential.
type Scanner struct {
	cfg    Config
	dialer *transport.Dialer
	store  *exploit.Store
	rep    Reporter
	pauser *Pauser

	// proberFor is swapped in tests to avoid real sockets.
	proberFor func(target.Target) detect.Prober
}

// New builds a Scanner. A nil Reporter discards events.
func New(cfg Config, dialer *transport.Dialer, store *exploit.Store, rep Reporter) *Scanner {
	if rep == nil {
		rep = NopReporter{}
	}
	s := &Scanner{cfg: cfg, dialer: dialer, store: store, rep: rep}
	s.proberFor = func(t target.Target) detect.Prober {
		return transport.NewClient(s.dialer, t)
	}
	return s
}

// SetPauser installs a pause gate checked between steps.
func (s *Scanner) SetPauser(p *Pauser) { s.pauser = p }

// Scan runs the state machine for one raw target string. It never returns
// nil; failures are recorded on the result.
func (s *Scanner) Scan(ctx context.Context, raw string) *ScanResult {
	res := &ScanResult{Input: raw, URL: raw, State: StateParse, StartedAt: time.Now()}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	t, err := target.Parse(raw)
	if err != nil {
		s.skip(res, err)
		return res
	}
	res.URL, res.Host, res.Port, res.Endpoint = t.URL, t.Host, t.Port, t.Path
	s.rep.TargetStarted(res)

	prober := s.proberFor(t)
	req := payload.Request{Method: s.cfg.Method, Host: t.Host, Path: t.Path, UserAgent: s.cfg.UserAgent}
	normal := payload.Normal(req)

	if !s.enter(ctx, res, StateBaseline) {
		return res
	}
	est := &detect.Estimator{
		Prober:   prober,
		Attempts: s.cfg.BaselineAttempts,
		Spacing:  s.cfg.BaselineSpacing,
		OnOutcome: func(i int, o transport.Outcome) {
			s.rep.Outcome(res, fmt.Sprintf("baseline %d", i), o)
		},
	}
	base, err := est.Estimate(ctx, normal)
	if err != nil {
		if ctx.Err() != nil {
			res.Interrupted = true
			return res
		}
		s.skip(res, fmt.Errorf("cannot establish baseline: %w", err))
		return res
	}
	res.Baseline = base
	s.rep.BaselineReady(res, base)

	probes := []struct {
		state State
		class detect.Class
		probe []byte
	}{
		{StateProbeCLTE, detect.ClassCLTE, payload.CLTEProbe(req)},
		{StateProbeTECL, detect.ClassTECL, payload.TECLProbe(req)},
	}
	for _, p := range probes {
		if !s.enter(ctx, res, p.state) {
			return res
		}
		class := p.class
		cl := &detect.Classifier{
			Prober:  prober,
			Rounds:  s.cfg.Rounds,
			Pause:   s.cfg.ProbePause,
			Timeout: s.cfg.Timeout,
			OnOutcome: func(round int, probe bool, o transport.Outcome) {
				kind := "normal"
				if probe {
					kind = "probe"
				}
				s.rep.Outcome(res, fmt.Sprintf("%s %s %d", class, kind, round), o)
			},
		}
		v, err := cl.Classify(ctx, class, p.probe, normal, base)
		if err != nil && !errors.Is(err, detect.ErrProbeInconclusive) {
			res.Interrupted = true
			return res
		}
		res.Verdicts = append(res.Verdicts, v)
		if v.Vulnerable {
			res.Details = append(res.Details, v.Evidence)
		}
		s.rep.VerdictReady(res, v)
	}

	res.VulnType, res.Confidence = detect.Merge(res.Verdicts...)
	res.Vulnerable = res.VulnType != detect.ClassNone

	for _, v := range res.Verdicts {
		if !v.Vulnerable {
			continue
		}
		if !s.enter(ctx, res, StateExploit) {
			return res
		}
		s.persist(res, t, v.Class)
	}

	res.State = StateDone
	s.rep.TargetDone(res)
	return res
}

// enter moves res to st unless the scan has been interrupted.
func (s *Scanner) enter(ctx context.Context, res *ScanResult, st State) bool {
	if err := s.pauser.Wait(ctx); err != nil {
		res.Interrupted = true
		return false
	}
	res.State = st
	s.rep.Stage(res, st)
	return true
}

func (s *Scanner) skip(res *ScanResult, err error) {
	res.State = StateSkipped
	res.Error = err.Error()
	s.rep.TargetSkipped(res, err)
}

// persist writes the exploit for class. A write failure is recorded but
// does not change the verdict.
func (s *Scanner) persist(res *ScanResult, t target.Target, class detect.Class) {
	var raw []byte
	switch class {
	case detect.ClassCLTE:
		raw = payload.CLTEExploit(t.Host, t.Path, s.cfg.Smuggled)
	case detect.ClassTECL:
		raw = payload.TECLExploit(t.Host, t.Path, s.cfg.Smuggled)
	default:
		return
	}

	path, err := s.store.Persist(t.Host, class, raw)
	s.rep.ExploitSaved(res, class, path, err)
	if err != nil {
		res.Details = append(res.Details, fmt.Sprintf("Exploit not saved: %v", err))
		return
	}
	res.ExploitFiles = append(res.ExploitFiles, path)
	res.Details = append(res.Details, "Exploit saved: "+path)
}
