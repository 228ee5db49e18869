package scanner

import (
	"github.com/zabe-dev/smuggler/internal/detect"
	"github.com/zabe-dev/smuggler/internal/transport"
)

// Reporter receives progress events from a Scanner. Implementations must
// be safe for concurrent use when the pool runs more than one worker.
type Reporter interface {
	TargetStarted(r *ScanResult)
	Stage(r *ScanResult, st State)
	Outcome(r *ScanResult, label string, o transport.Outcome)
	BaselineReady(r *ScanResult, b *detect.Baseline)
	VerdictReady(r *ScanResult, v detect.Verdict)
	ExploitSaved(r *ScanResult, class detect.Class, path string, err error)
	TargetSkipped(r *ScanResult, err error)
	TargetDone(r *ScanResult)
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) TargetStarted(*ScanResult)                             {}
func (NopReporter) Stage(*ScanResult, State)                              {}
func (NopReporter) Outcome(*ScanResult, string, transport.Outcome)        {}
func (NopReporter) BaselineReady(*ScanResult, *detect.Baseline)           {}
func (NopReporter) VerdictReady(*ScanResult, detect.Verdict)              {}
func (NopReporter) ExploitSaved(*ScanResult, detect.Class, string, error) {}
func (NopReporter) TargetSkipped(*ScanResult, error)                      {}
func (NopReporter) TargetDone(*ScanResult)                                {}
