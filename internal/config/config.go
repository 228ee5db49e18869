package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid options")

// Options holds all configuration for a smuggler scan.
type Options struct {
	// Target
	URL         string
	URLsFile    string
	RequestFile string // raw HTTP request file (e.g. Burp export)
	CIDRTargets string
	Ports       string // comma-separated ports for CIDR targets

	// Probe
	Method    string
	Timeout   time.Duration
	Delay     time.Duration
	Threads   int
	UserAgent string

	// Exploit
	SmuggleMethod string
	SmugglePath   string
	OutputDir     string

	// Network
	Proxy     string
	VerifyTLS bool

	// Output
	ReportFile   string
	ReportFormat string // "text", "json", "csv"
	Quiet        bool
	NoColor      bool
	Verbose      bool

	// Integrations
	DBPath       string
	OnFindingCmd string
	ResumeFile   string
	ConfigFile   string
}

// Defaults returns the options used when no flag, env var or config
// file says otherwise.
func Defaults() Options {
	return Options{
		Method:        "POST",
		Timeout:       10 * time.Second,
		Delay:         500 * time.Millisecond,
		Threads:       1,
		UserAgent:     "Mozilla/5.0",
		SmuggleMethod: "GET",
		SmugglePath:   "/hopefully404",
		OutputDir:     "./soutput",
		ReportFormat:  "text",
	}
}

// Validate checks option values that flag parsing alone cannot.
func (o *Options) Validate() error {
	switch {
	case !isToken(o.Method):
		return fmt.Errorf("%w: method %q", ErrInvalid, o.Method)
	case !isToken(o.SmuggleMethod):
		return fmt.Errorf("%w: smuggle method %q", ErrInvalid, o.SmuggleMethod)
	case !strings.HasPrefix(o.SmugglePath, "/"):
		return fmt.Errorf("%w: smuggle path must start with /", ErrInvalid)
	case strings.ContainsAny(o.SmugglePath, " \r\n"):
		return fmt.Errorf("%w: smuggle path %q", ErrInvalid, o.SmugglePath)
	case o.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	case o.Delay < 0:
		return fmt.Errorf("%w: delay must not be negative", ErrInvalid)
	case o.Threads < 1:
		return fmt.Errorf("%w: threads must be at least 1", ErrInvalid)
	case o.OutputDir == "":
		return fmt.Errorf("%w: output directory is empty", ErrInvalid)
	}
	switch o.ReportFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("%w: format must be one of: text, json, csv", ErrInvalid)
	}
	return nil
}

// isToken reports whether s is a usable request method.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '!' || r > '~' || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return false
		}
	}
	return true
}
