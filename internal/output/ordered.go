package output

import (
	"sort"

	"github.com/zabe-dev/smuggler/internal/scanner"
)

// OrderedWriter buffers results that may arrive out of order from the
// worker pool and replays them in input order on WriteFooter.
type OrderedWriter struct {
	inner   Writer
	next    int
	entries []orderedEntry
}

type orderedEntry struct {
	index  int
	result *scanner.ScanResult
}

func NewOrderedWriter(inner Writer) *OrderedWriter {
	return &OrderedWriter{inner: inner}
}

func (w *OrderedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

// WriteIndexed buffers r at its input position.
func (w *OrderedWriter) WriteIndexed(index int, r *scanner.ScanResult) {
	w.entries = append(w.entries, orderedEntry{index: index, result: r})
	if index >= w.next {
		w.next = index + 1
	}
}

// WriteResult buffers r after everything seen so far.
func (w *OrderedWriter) WriteResult(r *scanner.ScanResult) error {
	w.WriteIndexed(w.next, r)
	return nil
}

func (w *OrderedWriter) WriteFooter(stats Stats) error {
	sort.SliceStable(w.entries, func(i, j int) bool {
		return w.entries[i].index < w.entries[j].index
	})
	for _, e := range w.entries {
		if err := w.inner.WriteResult(e.result); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *OrderedWriter) Close() error {
	return w.inner.Close()
}
