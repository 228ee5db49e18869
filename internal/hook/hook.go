package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 30 * time.Second

// finding is the JSON document written to the hook's stdin.
type finding struct {
	URL          string   `json:"url"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	Endpoint     string   `json:"endpoint"`
	Type         string   `json:"type"`
	Confidence   string   `json:"confidence"`
	Details      []string `json:"details"`
	ExploitFiles []string `json:"exploit_files"`
}

// Runner executes a shell command for each vulnerable target.
type Runner struct {
	cmd     string
	quiet   bool
	log     io.Writer
	Timeout time.Duration
}

// NewRunner creates a hook runner for cmd. Hook output and errors go to log.
func NewRunner(cmd string, quiet bool, log io.Writer) *Runner {
	return &Runner{cmd: cmd, quiet: quiet, log: log, Timeout: DefaultTimeout}
}

// Expand substitutes {url}, {host}, {port}, {type}, {confidence} and {files}.
func Expand(cmd string, r *scanner.ScanResult) string {
	return strings.NewReplacer(
		"{url}", r.URL,
		"{host}", r.Host,
		"{port}", strconv.Itoa(r.Port),
		"{type}", string(r.VulnType),
		"{confidence}", string(r.Confidence),
		"{files}", strings.Join(r.ExploitFiles, " "),
	).Replace(cmd)
}

// Run executes the hook with the finding as JSON on stdin. Failures are
// logged and never stop the scan.
func (h *Runner) Run(ctx context.Context, r *scanner.ScanResult) error {
	data, err := json.Marshal(finding{
		URL:          r.URL,
		Host:         r.Host,
		Port:         r.Port,
		Endpoint:     r.Endpoint,
		Type:         string(r.VulnType),
		Confidence:   string(r.Confidence),
		Details:      r.Details,
		ExploitFiles: r.ExploitFiles,
	})
	if err != nil {
		return fmt.Errorf("hook: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, Expand(h.cmd, r))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = h.log
	cmd.WaitDelay = time.Second

	output, err := cmd.Output()
	if err != nil {
		if !h.quiet {
			fmt.Fprintf(h.log, "[hook] error: %v\n", err)
		}
		return fmt.Errorf("hook: %w", err)
	}
	if len(output) > 0 && !h.quiet {
		fmt.Fprintf(h.log, "[hook] %s", output)
	}
	return nil
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
