// Package runner wires options, targets and output sinks into a scan.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/zabe-dev/smuggler/internal/config"
	"github.com/zabe-dev/smuggler/internal/exploit"
	"github.com/zabe-dev/smuggler/internal/hook"
	"github.com/zabe-dev/smuggler/internal/output"
	"github.com/zabe-dev/smuggler/internal/payload"
	"github.com/zabe-dev/smuggler/internal/resume"
	"github.com/zabe-dev/smuggler/internal/scanner"
	"github.com/zabe-dev/smuggler/internal/storage/sqlite"
	"github.com/zabe-dev/smuggler/internal/target"
	"github.com/zabe-dev/smuggler/internal/transport"
	"github.com/zabe-dev/smuggler/pkg/version"
)

// scanDefaults supplies the timing parameters not exposed as flags.
var scanDefaults = scanner.DefaultConfig

// stderr receives banners, progress and diagnostics.
var stderr io.Writer = os.Stderr

// Run resolves targets and scans them. A target list that cannot be read
// is the only fatal input error; per-target failures are reported and
// skipped. An interrupted run still writes the summary and returns nil.
func Run(ctx context.Context, opts *config.Options) error {
	output.SetNoColor(opts.NoColor)

	targets, err := resolveTargets(opts)
	if err != nil {
		return err
	}

	dialer, err := newDialer(opts)
	if err != nil {
		return err
	}

	if !opts.Quiet {
		printBanner(stderr, opts, len(targets))
	}

	pending := targets
	var state *resume.State
	if opts.ResumeFile != "" {
		existing, err := resume.Load(opts.ResumeFile)
		if err != nil {
			return fmt.Errorf("loading resume file: %w", err)
		}
		if existing != nil && existing.Matches(targets) {
			state = existing
			pending = state.FilterRemaining(targets)
			if !opts.Quiet {
				fmt.Fprintf(stderr, "[+] Resuming: skipping %d already completed targets\n", len(targets)-len(pending))
			}
		} else {
			state = resume.New(opts.ResumeFile, targets)
			if err := state.Save(); err != nil {
				return fmt.Errorf("writing resume file: %w", err)
			}
		}
	}
	if len(pending) == 0 {
		if !opts.Quiet {
			fmt.Fprintln(stderr, "[+] All targets already completed")
		}
		if state != nil {
			_ = state.Remove()
		}
		return nil
	}

	var history *sqlite.Store
	if opts.DBPath != "" {
		history, err = sqlite.New(ctx, opts.DBPath)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer history.Close()
	}

	var hookRunner *hook.Runner
	if opts.OnFindingCmd != "" {
		hookRunner = hook.NewRunner(opts.OnFindingCmd, opts.Quiet, stderr)
	}

	w, err := output.NewWriter(opts.ReportFormat, opts.ReportFile, opts.NoColor)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	out := output.NewOrderedWriter(w)
	defer out.Close()
	if err := out.WriteHeader(); err != nil {
		return err
	}

	progress := output.NewProgress(len(pending))
	console := output.NewConsole(stderr, progress, opts.Quiet, opts.Verbose, opts.Threads > 1)

	s := scanner.New(scanConfig(opts), dialer, exploit.NewStore(opts.OutputDir), console)
	pauser, restore := startStdinToggle(
		func(paused bool) {
			if paused {
				console.Infof("Scan PAUSED - press Enter or Space to resume")
			} else {
				console.Infof("Scan RESUMED")
			}
		},
		func(err error) { console.Warnf("Could not enable raw terminal: %v", err) },
	)
	defer restore()
	s.SetPauser(pauser)

	results := scanner.RunPool(ctx, s, pending, scanner.PoolConfig{Threads: opts.Threads, Delay: opts.Delay})
	for item := range results {
		r := item.Result
		if !r.Completed() {
			continue
		}
		progress.Record(r)

		if state != nil {
			state.MarkCompleted(r.Input)
			if err := state.Save(); err != nil {
				console.Warnf("Could not save resume state: %v", err)
			}
		}
		if history != nil {
			if err := history.SaveResult(context.WithoutCancel(ctx), r); err != nil {
				console.Warnf("Could not record %s: %v", r.URL, err)
			}
		}
		if r.Vulnerable {
			out.WriteIndexed(item.Index, r)
			if hookRunner != nil {
				_ = hookRunner.Run(ctx, r)
			}
		}
	}
	restore()

	interrupted := ctx.Err() != nil
	if interrupted {
		console.Warnf("Interrupted")
	}

	stats := progress.Stats(pauser.PausedDuration())
	stats.Interrupted = interrupted
	if err := out.WriteFooter(stats); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	if state != nil {
		if interrupted {
			if !opts.Quiet {
				fmt.Fprintf(stderr, "[*] Progress saved to %s - resume with --resume-file\n", opts.ResumeFile)
			}
		} else if err := state.Remove(); err != nil {
			console.Warnf("Could not remove resume file: %v", err)
		}
	}
	return nil
}

// resolveTargets builds the ordered, de-duplicated list of raw targets
// from -u, --request-file, -l and --cidr.
func resolveTargets(opts *config.Options) ([]string, error) {
	var targets []string

	if opts.URL != "" {
		targets = append(targets, opts.URL)
	}

	if opts.RequestFile != "" {
		req, err := target.ParseRequestFile(opts.RequestFile)
		if err != nil {
			return nil, fmt.Errorf("parsing request file: %w", err)
		}
		targets = append(targets, req.URL)
	}

	if opts.URLsFile != "" {
		list, err := target.LoadFile(opts.URLsFile)
		if err != nil {
			return nil, fmt.Errorf("reading target list: %w", err)
		}
		targets = append(targets, list...)
	}

	if opts.CIDRTargets != "" {
		scheme := "https"
		if strings.HasPrefix(opts.URL, "http://") {
			scheme = "http"
		}
		hosts, err := target.ExpandCIDR(opts.CIDRTargets, opts.Ports, scheme)
		if err != nil {
			return nil, fmt.Errorf("expanding CIDR: %w", err)
		}
		targets = append(targets, hosts...)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets specified (-u, -l, --cidr or --request-file)")
	}
	return dedupe(targets), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func newDialer(opts *config.Options) (*transport.Dialer, error) {
	d := &transport.Dialer{Timeout: opts.Timeout, InsecureSkipVerify: !opts.VerifyTLS}
	if opts.Proxy != "" {
		u, err := transport.ParseProxy(opts.Proxy)
		if err != nil {
			return nil, err
		}
		d.Proxy = u
	}
	return d, nil
}

func scanConfig(opts *config.Options) scanner.Config {
	cfg := scanDefaults()
	cfg.Method = opts.Method
	cfg.Timeout = opts.Timeout
	if opts.UserAgent != "" {
		cfg.UserAgent = opts.UserAgent
	}
	cfg.Smuggled = payload.Smuggled{Method: opts.SmuggleMethod, Path: opts.SmugglePath}
	return cfg
}

func printBanner(w io.Writer, opts *config.Options, targetCount int) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Faint)
	value := color.New(color.FgHiWhite)
	warn := color.New(color.FgYellow)

	title.Fprintf(w, "\n  smuggler %s\n", version.Version)
	label.Fprintln(w, "  HTTP request smuggling detector")
	label.Fprintln(w, "  ──────────────────────────────────────")

	row := func(name, val string) {
		label.Fprintf(w, "  %-13s", name+":")
		value.Fprintln(w, val)
	}
	if targetCount == 1 {
		first := opts.URL
		if first == "" {
			first = "1 target"
		}
		row("Target", first)
	} else {
		row("Targets", fmt.Sprintf("%d", targetCount))
	}
	row("Method", opts.Method)
	row("Timeout", opts.Timeout.String())
	if targetCount > 1 {
		row("Delay", opts.Delay.String())
		row("Threads", fmt.Sprintf("%d", opts.Threads))
	}
	row("Smuggle", opts.SmuggleMethod+" "+opts.SmugglePath)
	row("Output dir", opts.OutputDir)
	if opts.Proxy != "" {
		row("Proxy", opts.Proxy)
	}
	if !opts.VerifyTLS {
		label.Fprintf(w, "  %-13s", "TLS:")
		warn.Fprintln(w, "certificate verification off")
	}
	label.Fprintln(w, "  ──────────────────────────────────────")
	fmt.Fprintln(w)
}
