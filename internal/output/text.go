package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/zabe-dev/smuggler/internal/detect"
	"github.com/zabe-dev/smuggler/internal/scanner"
)

// TextWriter prints the human-readable summary of vulnerable targets.
type TextWriter struct {
	w       io.Writer
	closer  io.Closer
	started bool

	high, medium, title *color.Color
}

// NewTextWriter writes to outputFile, or stdout when empty. Files never
// get color codes.
func NewTextWriter(outputFile string, noColor bool) (*TextWriter, error) {
	t := &TextWriter{
		w:      os.Stdout,
		high:   color.New(color.FgRed),
		medium: color.New(color.FgYellow),
		title:  color.New(color.FgRed, color.Bold),
	}
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		t.w, t.closer = f, f
		noColor = true
	}
	if noColor {
		t.high.DisableColor()
		t.medium.DisableColor()
		t.title.DisableColor()
	}
	return t, nil
}

func (t *TextWriter) WriteHeader() error { return nil }

func (t *TextWriter) WriteResult(r *scanner.ScanResult) error {
	if !t.started {
		t.started = true
		if _, err := fmt.Fprintf(t.w, "\n%s\n", t.title.Sprint("VULNERABLE TARGETS:")); err != nil {
			return err
		}
	}
	conf := t.medium
	if r.Confidence == detect.ConfidenceHigh {
		conf = t.high
	}
	if _, err := fmt.Fprintf(t.w, "  %s %s - %s %s\n",
		t.high.Sprint("[!]"), r.URL, t.high.Sprint(r.VulnType), conf.Sprintf("[%s]", r.Confidence)); err != nil {
		return err
	}
	for _, d := range r.Details {
		if _, err := fmt.Fprintf(t.w, "      %s\n", d); err != nil {
			return err
		}
	}
	return nil
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if !t.started {
		if _, err := fmt.Fprintln(t.w, "\nNo vulnerable targets found."); err != nil {
			return err
		}
	}
	status := "Completed"
	if stats.Interrupted {
		status = "Interrupted"
	}
	_, err := fmt.Fprintf(os.Stderr,
		"\n%s: %d/%d targets | Vulnerable: %d | Skipped: %d | Exploits: %d | Duration: %s\n%s at %s\n",
		status, stats.Completed, stats.Targets, stats.Vulnerable, stats.Skipped, stats.Exploits,
		stats.Duration.Round(time.Millisecond),
		status, time.Now().Format("2006-01-02 15:04:05"),
	)
	return err
}

func (t *TextWriter) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
