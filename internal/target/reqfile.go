package target

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// CapturedRequest is the part of a saved raw request (e.g. a Burp Suite
// export) that selects what to probe: the method and the full endpoint URL.
type CapturedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
}

// ParseRequestFile reads a raw HTTP request and rebuilds the endpoint URL
// from the Host header and request line. The scheme is https unless the
// Host names port 80.
func ParseRequestFile(path string) (*CapturedRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening request file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("request file is empty")
	}
	line := strings.TrimSpace(sc.Text())
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("invalid request line: %q", line)
	}
	req := &CapturedRequest{
		Method:  strings.ToUpper(fields[0]),
		Headers: make(map[string]string),
	}
	reqTarget := fields[1]

	for sc.Scan() {
		h := sc.Text()
		if strings.TrimSpace(h) == "" {
			break
		}
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}

	// Absolute-form request targets carry their own scheme and host.
	if strings.HasPrefix(reqTarget, "http://") || strings.HasPrefix(reqTarget, "https://") {
		if _, err := url.Parse(reqTarget); err != nil {
			return nil, fmt.Errorf("invalid URL in request line: %w", err)
		}
		req.URL = reqTarget
		return req, nil
	}

	host := headerValue(req.Headers, "Host")
	if host == "" {
		return nil, fmt.Errorf("request file missing Host header")
	}
	scheme := "https"
	if strings.HasSuffix(host, ":80") {
		scheme = "http"
	}
	if !strings.HasPrefix(reqTarget, "/") {
		reqTarget = "/" + reqTarget
	}
	req.URL = scheme + "://" + host + reqTarget
	return req, nil
}

// Header returns the captured value of name, matched case-insensitively.
func (c *CapturedRequest) Header(name string) string {
	return headerValue(c.Headers, name)
}

func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
