package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/zabe-dev/smuggler/internal/detect"
	"github.com/zabe-dev/smuggler/internal/scanner"
	"github.com/zabe-dev/smuggler/internal/transport"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
)

// SetNoColor disables colors for every writer in the process.
func SetNoColor(v bool) {
	if v {
		color.NoColor = true
	}
}

// Console prints human-readable scan progress. It implements
// scanner.Reporter and is safe for concurrent workers.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	quiet    bool
	verbose  bool
	tagLines bool // prefix per-target lines with host:port when targets interleave
	progress *Progress
}

// NewConsole writes to w. With quiet only findings and warnings are
// printed; verbose adds every request outcome.
func NewConsole(w io.Writer, progress *Progress, quiet, verbose, tagLines bool) *Console {
	return &Console{w: w, progress: progress, quiet: quiet, verbose: verbose, tagLines: tagLines}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// line prints an indented per-target line.
func (c *Console) line(r *scanner.ScanResult, format string, args ...any) {
	prefix := "  "
	if c.tagLines && r.Host != "" {
		prefix = fmt.Sprintf("  %s ", dim(fmt.Sprintf("[%s:%d]", r.Host, r.Port)))
	}
	c.printf(prefix+format+"\n", args...)
}

func (c *Console) Infof(format string, args ...any) {
	if c.quiet {
		return
	}
	c.printf("%s %s\n", cyan("[*]"), fmt.Sprintf(format, args...))
}

func (c *Console) Goodf(format string, args ...any) {
	if c.quiet {
		return
	}
	c.printf("%s %s\n", green("[+]"), fmt.Sprintf(format, args...))
}

func (c *Console) Warnf(format string, args ...any) {
	c.printf("%s %s\n", yellow("[!]"), fmt.Sprintf(format, args...))
}

func (c *Console) TargetStarted(r *scanner.ScanResult) {
	if c.quiet {
		return
	}
	counter := ""
	if c.progress != nil && c.progress.Total() > 1 {
		counter = fmt.Sprintf(" [%d/%d]", c.progress.Start(), c.progress.Total())
	}
	c.printf("\n%s Testing%s: %s\n", cyan("→"), counter, bold(r.URL))
}

func (c *Console) Stage(r *scanner.ScanResult, st scanner.State) {
	if c.quiet {
		return
	}
	switch st {
	case scanner.StateBaseline:
		c.line(r, "%s Establishing baseline...", cyan("[*]"))
	case scanner.StateProbeCLTE:
		c.line(r, "%s Testing %s desync...", cyan("[*]"), detect.ClassCLTE)
	case scanner.StateProbeTECL:
		c.line(r, "%s Testing %s desync...", cyan("[*]"), detect.ClassTECL)
	}
}

func (c *Console) Outcome(r *scanner.ScanResult, label string, o transport.Outcome) {
	if !c.verbose {
		return
	}
	c.line(r, "    %s %s", dim(label+":"), dim(o.String()))
}

func (c *Console) BaselineReady(r *scanner.ScanResult, b *detect.Baseline) {
	if c.quiet {
		return
	}
	c.line(r, "%s Baseline: %.3fs (±%.3fs)", green("[+]"), b.Mean.Seconds(), b.StdDev.Seconds())
}

func (c *Console) VerdictReady(r *scanner.ScanResult, v detect.Verdict) {
	switch {
	case v.Inconclusive:
		if !c.quiet {
			c.line(r, "%s %s inconclusive", yellow("[~]"), v.Class)
		}
	case v.Vulnerable && v.Confidence == detect.ConfidenceHigh:
		c.line(r, "%s", red(fmt.Sprintf("[!] %s VULNERABLE [%s] %s", v.Class, v.Confidence, r.URL)))
		c.line(r, "    Attack: %.2fs | Normal: %.2fs | Timeouts: %d/%d",
			v.ProbeMean.Seconds(), v.NormalMean.Seconds(), v.Timeouts, v.Rounds)
	case v.Vulnerable:
		c.line(r, "%s", yellow(fmt.Sprintf("[!] %s POTENTIALLY VULNERABLE [%s] %s", v.Class, v.Confidence, r.URL)))
		c.line(r, "    Attack: %.2fs | Normal: %.2fs | %s",
			v.ProbeMean.Seconds(), v.NormalMean.Seconds(), v.Evidence)
	default:
		if !c.quiet {
			c.line(r, "%s %s not vulnerable", green("[+]"), v.Class)
		}
	}
}

func (c *Console) ExploitSaved(r *scanner.ScanResult, class detect.Class, path string, err error) {
	if err != nil {
		c.line(r, "%s %s exploit not saved: %v", yellow("[!]"), class, err)
		return
	}
	c.line(r, "    %s", green("Exploit: "+path))
}

func (c *Console) TargetSkipped(r *scanner.ScanResult, err error) {
	msg := err.Error()
	if r.Host == "" {
		msg = fmt.Sprintf("%s: %s", r.Input, msg)
	}
	c.line(r, "%s", red("[!] "+msg+" - skipping"))
}

func (c *Console) TargetDone(r *scanner.ScanResult) {
	if c.verbose {
		c.line(r, "%s Done in %s", cyan("[*]"), time.Since(r.StartedAt).Round(time.Millisecond))
	}
}
