package target

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrInvalid is returned for target strings that cannot be scanned.
var ErrInvalid = errors.New("invalid target")

// Target is a normalized scan destination. It is immutable once parsed.
type Target struct {
	URL    string // normalized scheme://host:port/path
	Scheme string
	Host   string
	Port   int
	Path   string // request target sent on the wire, including any query
	TLS    bool
}

// Parse normalizes a user-supplied URL. A missing scheme means https, the
// port defaults to 443/80 and the path to "/".
func Parse(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	if !hasScheme(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("%w: missing host in %q", ErrInvalid, raw)
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("%w: bad port %q", ErrInvalid, p)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	t := Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   path,
		TLS:    scheme == "https",
	}
	t.URL = fmt.Sprintf("%s://%s%s", scheme, t.Addr(), path)
	return t, nil
}

// hasScheme reports whether raw starts with a scheme. A "://" inside the
// path or query does not count.
func hasScheme(raw string) bool {
	i := strings.Index(raw, "://")
	if i < 0 {
		return false
	}
	j := strings.IndexAny(raw, "/?#")
	return i <= j
}

// Addr returns host:port suitable for net.Dial.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string { return t.URL }

// ReadList reads one target per line, skipping blank lines and # comments.
func ReadList(r io.Reader) ([]string, error) {
	var targets []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// LoadFile reads a target list from disk.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening targets file: %w", err)
	}
	defer f.Close()

	targets, err := ReadList(f)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}
	return targets, nil
}
