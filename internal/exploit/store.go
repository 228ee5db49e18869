// Package exploit persists replayable smuggling requests for confirmed
// findings.
package exploit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zabe-dev/smuggler/internal/detect"
)

// ErrPersist wraps every failure to write an artifact.
var ErrPersist = errors.New("persist exploit")

// maxSuffix bounds the collision search for a single second.
const maxSuffix = 1000

// Store writes one file per exploit under Dir. Files are created
// exclusively and never overwritten.
type Store struct {
	Dir string

	now func() time.Time
}

// createExclusive opens a new file for writing and fails if it exists.
var createExclusive = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, now: time.Now}
}

// Persist writes payload to <Dir>/<TAG>_EXPLOIT_<host>_<unix>.txt, adding
// a _N suffix when that name already exists.
func (s *Store) Persist(host string, class detect.Class, payload []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersist, err)
	}

	now := s.now
	if now == nil {
		now = time.Now
	}
	base := fmt.Sprintf("%s_EXPLOIT_%s_%d", class.Tag(), SanitizeHost(host), now().Unix())
	for n := 1; n <= maxSuffix; n++ {
		name := base + ".txt"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.txt", base, n)
		}
		path := filepath.Join(s.Dir, name)

		f, err := createExclusive(path)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPersist, err)
		}
		// A partial file must not pass for an artifact or hold the name.
		if _, err := f.Write(payload); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("%w: %s: %v", ErrPersist, path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("%w: %s: %v", ErrPersist, path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: no free name for %s", ErrPersist, base)
}

// SanitizeHost maps a host to a filename-safe token: letters, digits and
// '-' are kept, everything else becomes '_'.
func SanitizeHost(host string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, host)
}
