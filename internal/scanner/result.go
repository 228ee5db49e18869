package scanner

import (
	"time"

	"github.com/zabe-dev/smuggler/internal/detect"
)

// State is a step of the per-target state machine.
type State string

const (
	StateParse     State = "PARSE"
	StateBaseline  State = "BASELINE"
	StateProbeCLTE State = "PROBE_CLTE"
	StateProbeTECL State = "PROBE_TECL"
	StateExploit   State = "EXPLOIT_WRITE"
	StateDone      State = "DONE"
	StateSkipped   State = "SKIPPED"
)

// ScanResult is the outcome of scanning one target. State ends at DONE
// or SKIPPED unless the scan was interrupted.
type ScanResult struct {
	Input        string            `json:"input"`
	URL          string            `json:"url"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	Endpoint     string            `json:"endpoint"`
	State        State             `json:"state"`
	Vulnerable   bool              `json:"vulnerable"`
	VulnType     detect.Class      `json:"vuln_type,omitempty"`
	Confidence   detect.Confidence `json:"confidence,omitempty"`
	Details      []string          `json:"details,omitempty"`
	ExploitFiles []string          `json:"exploit_files,omitempty"`
	Baseline     *detect.Baseline  `json:"baseline,omitempty"`
	Verdicts     []detect.Verdict  `json:"verdicts,omitempty"`
	Error        string            `json:"error,omitempty"`
	Interrupted  bool              `json:"interrupted,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
}

// Completed reports whether the scan reached a terminal state.
func (r *ScanResult) Completed() bool {
	return !r.Interrupted && (r.State == StateDone || r.State == StateSkipped)
}
