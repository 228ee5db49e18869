package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zabe-dev/smuggler/internal/config"
	"github.com/zabe-dev/smuggler/internal/runner"
	"github.com/zabe-dev/smuggler/internal/target"
	"github.com/zabe-dev/smuggler/pkg/version"
)

var opts = config.Defaults()

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "urls-file", "request-file", "cidr", "ports"}},
	{"PROBE", []string{"method", "timeout", "delay", "threads", "user-agent"}},
	{"EXPLOIT", []string{"smuggle-method", "smuggle-path", "output-dir"}},
	{"NETWORK", []string{"proxy", "verify-tls"}},
	{"OUTPUT", []string{"report", "format", "quiet", "verbose", "no-color", "db", "on-finding"}},
	{"CONFIGURATION", []string{"config", "resume-file"}},
}

var rootCmd = &cobra.Command{
	Use:     "smuggler -u <url> [flags]",
	Short:   "HTTP request smuggling (CL.TE / TE.CL) detector",
	Version: version.Version,
	Long: `smuggler detects HTTP request smuggling between a front end and a back
end by sending crafted raw HTTP/1.1 requests and comparing response timing
against a per-target baseline. Confirmed desyncs get a replayable exploit
request written to the output directory.`,
	Example: `  smuggler -u https://example.com/login
  smuggler -u https://example.com -t 5 -v
  smuggler -l targets.txt -d 1 -o findings
  smuggler -r burp.req --smuggle-path /admin
  smuggler --cidr 10.0.0.0/24 --ports 80,443,8080 --threads 8
  smuggler -l targets.txt --report results.json --format json
  smuggler -u https://example.com --proxy socks5://127.0.0.1:1080
  smuggler -l targets.txt --resume-file scan.state --db history.db
  smuggler -l targets.txt --on-finding "notify-send {type} {url}"`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.ConfigFile == "" {
			opts.ConfigFile = os.Getenv(config.EnvPrefix + "_CONFIG")
		}
		if err := config.ApplyOverrides(cmd.Flags(), opts.ConfigFile); err != nil {
			return err
		}

		// Take method and User-Agent from a captured request unless
		// given explicitly; the runner adds its URL to the targets.
		if opts.RequestFile != "" {
			req, err := target.ParseRequestFile(opts.RequestFile)
			if err != nil {
				return fmt.Errorf("parsing request file: %w", err)
			}
			if !cmd.Flags().Changed("method") {
				opts.Method = req.Method
			}
			if ua := req.Header("User-Agent"); ua != "" && !cmd.Flags().Changed("user-agent") {
				opts.UserAgent = ua
			}
			if !opts.Quiet {
				fmt.Fprintf(os.Stderr, "[+] Loaded request from %s -> %s %s\n", opts.RequestFile, opts.Method, req.URL)
			}
		}

		if opts.URL == "" && opts.URLsFile == "" && opts.CIDRTargets == "" && opts.RequestFile == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("target required: use -u, -l, --cidr, or --request-file")
		}
		return opts.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	d := config.Defaults()

	// Target
	f.StringVarP(&opts.URL, "url", "u", "", "Target URL (scheme defaults to https)")
	f.StringVarP(&opts.URLsFile, "urls-file", "l", "", "File with one target per line")
	f.StringVarP(&opts.RequestFile, "request-file", "r", "", "Raw HTTP request file (e.g. Burp Suite export)")
	f.StringVar(&opts.CIDRTargets, "cidr", "", "CIDR range to scan (e.g. 192.168.1.0/24)")
	f.StringVar(&opts.Ports, "ports", "", "Ports for CIDR targets (comma-separated, e.g. 80,443,8080)")

	// Probe
	f.StringVarP(&opts.Method, "method", "m", d.Method, "HTTP method for baseline and probe requests")
	f.VarP(&secondsValue{target: &opts.Timeout}, "timeout", "t", "Socket timeout, seconds or duration (e.g. 10, 2.5, 1500ms)")
	f.VarP(&secondsValue{target: &opts.Delay}, "delay", "d", "Delay between targets, seconds or duration")
	f.IntVar(&opts.Threads, "threads", d.Threads, "Targets scanned in parallel (same host:port never overlaps)")
	f.StringVar(&opts.UserAgent, "user-agent", d.UserAgent, "User-Agent header")

	// Exploit
	f.StringVar(&opts.SmuggleMethod, "smuggle-method", d.SmuggleMethod, "Method of the smuggled request in exploit files")
	f.StringVar(&opts.SmugglePath, "smuggle-path", d.SmugglePath, "Path of the smuggled request in exploit files")
	f.StringVarP(&opts.OutputDir, "output-dir", "o", d.OutputDir, "Directory for exploit files")

	// Network
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP or SOCKS5 proxy URL")
	f.BoolVar(&opts.VerifyTLS, "verify-tls", false, "Verify TLS certificates")

	// Output
	f.StringVar(&opts.ReportFile, "report", "", "Write the summary to a file instead of stdout")
	f.StringVar(&opts.ReportFormat, "format", d.ReportFormat, "Summary format: text, json, csv")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print findings and errors")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Print every request outcome")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.StringVar(&opts.DBPath, "db", "", "SQLite database recording every scanned target")
	f.StringVar(&opts.OnFindingCmd, "on-finding", "", "Shell command per vulnerable target; {url} {host} {port} {type} {confidence} {files}, JSON on stdin")

	// Configuration
	f.StringVar(&opts.ConfigFile, "config", "", "Config file (yaml, toml or json); keys are flag names, SMUGGLER_* env vars also apply")
	f.StringVar(&opts.ResumeFile, "resume-file", "", "File to save/load scan progress for resume")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(cmd.Version))
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				if f := cmd.Flags().Lookup(name); f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// secondsValue implements pflag.Value for durations given either as bare
// seconds ("10", "0.5") or Go durations ("10s", "1500ms").
type secondsValue struct {
	target *time.Duration
}

func (v *secondsValue) String() string {
	if v.target == nil {
		return ""
	}
	return v.target.String()
}

func (v *secondsValue) Set(s string) error {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*v.target = time.Duration(secs * float64(time.Second))
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: use seconds (2.5) or a duration (2500ms)", s)
	}
	*v.target = dur
	return nil
}

func (v *secondsValue) Type() string { return "seconds" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
                                  __
   _________ ___  __  ______ _____ _/ /__  _____
  / ___/ __ '__ \/ / / / __ '/ __ '/ / _ \/ ___/
 (__  ) / / / / / /_/ / /_/ / /_/ / /  __/ /
/____/_/ /_/ /_/\__,_/\__, /\__, /_/\___/_/   %s
                     /____//____/

`, ver)
}
