package output

import (
	"time"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// Stats holds aggregate run statistics.
type Stats struct {
	Targets     int
	Completed   int
	Vulnerable  int
	Skipped     int
	Exploits    int
	Interrupted bool
	Duration    time.Duration
}

// Writer is implemented by each summary format. Only vulnerable results
// are handed to WriteResult.
type Writer interface {
	WriteHeader() error
	WriteResult(result *scanner.ScanResult) error
	WriteFooter(stats Stats) error
	Close() error
}

// NewWriter returns the writer for format ("text", "json" or "csv"),
// writing to path or stdout when path is empty.
func NewWriter(format, path string, noColor bool) (Writer, error) {
	switch format {
	case "json":
		return NewJSONWriter(path)
	case "csv":
		return NewCSVWriter(path)
	default:
		return NewTextWriter(path, noColor)
	}
}
