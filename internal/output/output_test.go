package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zabe-dev/smuggler/internal/detect"
	"github.com/zabe-dev/smuggler/internal/scanner"
	"github.com/zabe-dev/smuggler/internal/transport"
)

func init() { SetNoColor(true) }

func vulnResult(url string, class detect.Class, conf detect.Confidence) *scanner.ScanResult {
	return &scanner.ScanResult{
		Input:        url,
		URL:          url,
		Host:         "example.com",
		Port:         443,
		Endpoint:     "/",
		State:        scanner.StateDone,
		Vulnerable:   true,
		VulnType:     class,
		Confidence:   conf,
		Details:      []string{"Timeout ratio: 3/3, timing diff: 20.0x", "Exploit saved: soutput/CLTE_EXPLOIT_example_com_1.txt"},
		ExploitFiles: []string{"soutput/CLTE_EXPLOIT_example_com_1.txt"},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestTextWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	w, err := NewTextWriter(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteResult(vulnResult("https://example.com:443/", detect.ClassCLTE, detect.ConfidenceHigh)); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFooter(Stats{Targets: 1, Completed: 1, Vulnerable: 1}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	out := readFile(t, path)
	for _, want := range []string{
		"VULNERABLE TARGETS:",
		"[!] https://example.com:443/ - CL.TE [HIGH]",
		"      Timeout ratio: 3/3, timing diff: 20.0x",
		"      Exploit saved: soutput/CLTE_EXPLOIT_example_com_1.txt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("file summary contains ANSI escapes")
	}
}

func TestTextWriter_NoFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	w, err := NewTextWriter(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFooter(Stats{Targets: 2, Completed: 2}); err != nil {
		t.Fatal(err)
	}
	w.Close()
	out := readFile(t, path)
	if strings.Contains(out, "VULNERABLE") || !strings.Contains(out, "No vulnerable targets found.") {
		t.Errorf("summary = %q", out)
	}
}

func TestJSONWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteResult(vulnResult("https://example.com:443/", detect.ClassBoth, detect.ConfidenceMedium))
	if err := w.WriteFooter(Stats{Targets: 3, Completed: 3, Skipped: 1}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	var report struct {
		Targets    int `json:"targets"`
		Skipped    int `json:"skipped"`
		Vulnerable []struct {
			URL        string `json:"url"`
			VulnType   string `json:"vuln_type"`
			Confidence string `json:"confidence"`
		} `json:"vulnerable"`
	}
	if err := json.Unmarshal([]byte(readFile(t, path)), &report); err != nil {
		t.Fatal(err)
	}
	if report.Targets != 3 || report.Skipped != 1 || len(report.Vulnerable) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if v := report.Vulnerable[0]; v.VulnType != "CL.TE+TE.CL" || v.Confidence != "MEDIUM" {
		t.Errorf("entry = %+v", v)
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteHeader()
	w.WriteResult(vulnResult("https://example.com:443/", detect.ClassTECL, detect.ConfidenceHigh))
	if err := w.WriteFooter(Stats{}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	rows, err := csv.NewReader(strings.NewReader(readFile(t, path))).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1][4] != "TE.CL" || rows[1][2] != "443" {
		t.Errorf("row = %v", rows[1])
	}
}

type captureWriter struct {
	urls   []string
	footer bool
}

func (c *captureWriter) WriteHeader() error { return nil }
func (c *captureWriter) WriteResult(r *scanner.ScanResult) error {
	c.urls = append(c.urls, r.URL)
	return nil
}
func (c *captureWriter) WriteFooter(Stats) error {
	c.footer = true
	return nil
}
func (c *captureWriter) Close() error { return nil }

func TestOrderedWriter(t *testing.T) {
	inner := &captureWriter{}
	w := NewOrderedWriter(inner)
	w.WriteIndexed(2, &scanner.ScanResult{URL: "c"})
	w.WriteIndexed(0, &scanner.ScanResult{URL: "a"})
	w.WriteIndexed(1, &scanner.ScanResult{URL: "b"})
	w.WriteResult(&scanner.ScanResult{URL: "d"})
	if len(inner.urls) != 0 {
		t.Fatal("results forwarded before footer")
	}
	if err := w.WriteFooter(Stats{}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(inner.urls, ","); got != "a,b,c,d" || !inner.footer {
		t.Errorf("order = %s, footer = %v", got, inner.footer)
	}
}

func TestProgress(t *testing.T) {
	p := NewProgress(4)
	p.Record(vulnResult("a", detect.ClassCLTE, detect.ConfidenceHigh))
	p.Record(&scanner.ScanResult{State: scanner.StateSkipped})
	p.Record(&scanner.ScanResult{State: scanner.StateDone})
	p.Record(&scanner.ScanResult{State: scanner.StateBaseline, Interrupted: true})

	s := p.Stats(0)
	if s.Targets != 4 || s.Completed != 3 || s.Vulnerable != 1 || s.Skipped != 1 || s.Exploits != 1 {
		t.Errorf("stats = %+v", s)
	}
	if p.Start() != 1 || p.Start() != 2 {
		t.Error("Start should count up from 1")
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, NewProgress(2), false, true, false)
	r := &scanner.ScanResult{URL: "https://example.com:443/", Host: "example.com", Port: 443, StartedAt: time.Now()}

	c.TargetStarted(r)
	c.Stage(r, scanner.StateBaseline)
	c.Outcome(r, "baseline 1", transport.Outcome{Status: transport.StatusTimeout, Elapsed: time.Second})
	c.BaselineReady(r, &detect.Baseline{Mean: 120 * time.Millisecond, StdDev: 5 * time.Millisecond})
	c.Stage(r, scanner.StateProbeCLTE)
	c.VerdictReady(r, detect.Verdict{Class: detect.ClassCLTE, Vulnerable: true, Confidence: detect.ConfidenceHigh, Timeouts: 3, Rounds: 3, ProbeMean: 10 * time.Second, NormalMean: 100 * time.Millisecond})
	c.Stage(r, scanner.StateProbeTECL)
	c.VerdictReady(r, detect.Verdict{Class: detect.ClassTECL, Inconclusive: true})
	c.ExploitSaved(r, detect.ClassCLTE, "soutput/CLTE_EXPLOIT_example_com_1.txt", nil)
	c.ExploitSaved(r, detect.ClassTECL, "", errors.New("disk full"))

	out := buf.String()
	for _, want := range []string{
		"Testing [1/2]: https://example.com:443/",
		"[*] Establishing baseline...",
		"baseline 1: TIMEOUT 1.00s",
		"[+] Baseline: 0.120s (±0.005s)",
		"[*] Testing CL.TE desync...",
		"[!] CL.TE VULNERABLE [HIGH] https://example.com:443/",
		"Attack: 10.00s | Normal: 0.10s | Timeouts: 3/3",
		"[~] TE.CL inconclusive",
		"Exploit: soutput/CLTE_EXPLOIT_example_com_1.txt",
		"TE.CL exploit not saved: disk full",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_QuietKeepsFindings(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil, true, false, true)
	r := &scanner.ScanResult{URL: "http://a.test:80/", Host: "a.test", Port: 80}

	c.TargetStarted(r)
	c.Stage(r, scanner.StateBaseline)
	c.Infof("banner")
	c.VerdictReady(r, detect.Verdict{Class: detect.ClassTECL})
	c.VerdictReady(r, detect.Verdict{Class: detect.ClassCLTE, Vulnerable: true, Confidence: detect.ConfidenceMedium, Evidence: "Timing difference: 3.0x"})

	out := buf.String()
	if strings.Contains(out, "Testing") || strings.Contains(out, "banner") || strings.Contains(out, "not vulnerable") {
		t.Errorf("quiet console printed progress:\n%s", out)
	}
	if !strings.Contains(out, "[a.test:80]") || !strings.Contains(out, "POTENTIALLY VULNERABLE [MEDIUM]") {
		t.Errorf("quiet console dropped the finding:\n%s", out)
	}
}
