package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// CSVWriter writes one row per vulnerable target.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter writes to outputFile, or stdout when empty.
func NewCSVWriter(outputFile string) (*CSVWriter, error) {
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
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}, nil
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{"url", "host", "port", "endpoint", "vuln_type", "confidence", "details", "exploit_files"})
}

func (c *CSVWriter) WriteResult(r *scanner.ScanResult) error {
	return c.w.Write([]string{
		r.URL,
		r.Host,
		strconv.Itoa(r.Port),
		r.Endpoint,
		string(r.VulnType),
		string(r.Confidence),
		strings.Join(r.Details, "; "),
		strings.Join(r.ExploitFiles, ";"),
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
