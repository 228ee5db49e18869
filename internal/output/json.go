package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

type jsonReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Targets     int                   `json:"targets"`
	Completed   int                   `json:"completed"`
	Skipped     int                   `json:"skipped"`
	Interrupted bool                  `json:"interrupted,omitempty"`
	Vulnerable  []*scanner.ScanResult `json:"vulnerable"`
}

// JSONWriter writes one JSON document with every vulnerable result.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	results []*scanner.ScanResult
}

// NewJSONWriter writes to outputFile, or stdout when empty.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f
	}
	return &JSONWriter{w: w, closer: closer, results: []*scanner.ScanResult{}}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(r *scanner.ScanResult) error {
	j.results = append(j.results, r)
	return nil
}

func (j *JSONWriter) WriteFooter(stats Stats) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		GeneratedAt: time.Now().UTC(),
		Targets:     stats.Targets,
		Completed:   stats.Completed,
		Skipped:     stats.Skipped,
		Interrupted: stats.Interrupted,
		Vulnerable:  j.results,
	})
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
