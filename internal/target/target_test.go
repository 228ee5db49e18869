package target

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Target
	}{
		{
			name: "bare host defaults to https",
			raw:  "example.com",
			want: Target{URL: "https://example.com:443/", Scheme: "https", Host: "example.com", Port: 443, Path: "/", TLS: true},
		},
		{
			name: "explicit http port and path",
			raw:  "http://example.com:8080/api",
			want: Target{URL: "http://example.com:8080/api", Scheme: "http", Host: "example.com", Port: 8080, Path: "/api"},
		},
		{
			name: "http default port",
			raw:  "http://example.com",
			want: Target{URL: "http://example.com:80/", Scheme: "http", Host: "example.com", Port: 80, Path: "/"},
		},
		{
			name: "query kept on endpoint",
			raw:  "https://example.com/login?next=%2F",
			want: Target{URL: "https://example.com:443/login?next=%2F", Scheme: "https", Host: "example.com", Port: 443, Path: "/login?next=%2F", TLS: true},
		},
		{
			name: "surrounding whitespace",
			raw:  "  example.com/x \n",
			want: Target{URL: "https://example.com:443/x", Scheme: "https", Host: "example.com", Port: 443, Path: "/x", TLS: true},
		},
		{
			name: "bare host with url in query",
			raw:  "example.com/login?next=https://example.com/",
			want: Target{URL: "https://example.com:443/login?next=https://example.com/", Scheme: "https", Host: "example.com", Port: 443, Path: "/login?next=https://example.com/", TLS: true},
		},
		{
			name: "bare host with port",
			raw:  "example.com:8443",
			want: Target{URL: "https://example.com:8443/", Scheme: "https", Host: "example.com", Port: 8443, Path: "/", TLS: true},
		},
		{
			name: "ipv6 literal",
			raw:  "http://[::1]:8000/",
			want: Target{URL: "http://[::1]:8000/", Scheme: "http", Host: "::1", Port: 8000, Path: "/"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "http://example.com:99999/", "https://"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := Parse(raw); !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse(%q) err = %v, want ErrInvalid", raw, err)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	tg, err := Parse("http://[::1]:8000")
	if err != nil {
		t.Fatal(err)
	}
	if got := tg.Addr(); got != "[::1]:8000" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestReadList(t *testing.T) {
	in := "# targets\nexample.com\n\n   \nhttp://a.test/x\n  # indented comment\n b.test \n"
	got, err := ReadList(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"example.com", "http://a.test/x", "b.test"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadList = %v, want %v", got, want)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name   string
		cidr   string
		ports  string
		scheme string
		want   []string
	}{
		{
			name:   "single ip default https port",
			cidr:   "10.0.0.5",
			scheme: "https",
			want:   []string{"https://10.0.0.5"},
		},
		{
			name:   "slash 30 drops network and broadcast",
			cidr:   "192.168.1.0/30",
			ports:  "80,8080",
			scheme: "http",
			want: []string{
				"http://192.168.1.1", "http://192.168.1.1:8080",
				"http://192.168.1.2", "http://192.168.1.2:8080",
			},
		},
		{
			name:   "slash 31 keeps both",
			cidr:   "10.1.1.0/31",
			scheme: "https",
			ports:  "8443",
			want:   []string{"https://10.1.1.0:8443", "https://10.1.1.1:8443"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCIDR(tt.cidr, tt.ports, tt.scheme)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandCIDR = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandCIDR_Invalid(t *testing.T) {
	if _, err := ExpandCIDR("not-an-ip", "", "https"); err == nil {
		t.Error("expected error for bad CIDR")
	}
	if _, err := ExpandCIDR("10.0.0.1", "80,abc", "http"); err == nil {
		t.Error("expected error for bad port")
	}
}

func TestParseRequestFile(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantMethod string
		wantURL    string
	}{
		{
			name:       "burp http2 export keeps path",
			content:    "POST /login?x=1 HTTP/2\r\nHost: www.example.com\r\nCookie: a=b\r\n\r\nuser=x",
			wantMethod: "POST",
			wantURL:    "https://www.example.com/login?x=1",
		},
		{
			name:       "port 80 means http",
			content:    "GET /admin HTTP/1.1\r\nHost: target.com:80\r\n\r\n",
			wantMethod: "GET",
			wantURL:    "http://target.com:80/admin",
		},
		{
			name:       "absolute form",
			content:    "post http://proxy.test:8080/api HTTP/1.1\r\nHost: ignored\r\n\r\n",
			wantMethod: "POST",
			wantURL:    "http://proxy.test:8080/api",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequestFile(writeTempFile(t, tt.content))
			if err != nil {
				t.Fatalf("ParseRequestFile: %v", err)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("method = %q, want %q", req.Method, tt.wantMethod)
			}
			if req.URL != tt.wantURL {
				t.Errorf("url = %q, want %q", req.URL, tt.wantURL)
			}
		})
	}
}

func TestParseRequestFile_Errors(t *testing.T) {
	for name, content := range map[string]string{
		"empty":        "",
		"missing host": "GET / HTTP/1.1\r\nAccept: */*\r\n\r\n",
		"bad line":     "GARBAGE\r\n\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRequestFile(writeTempFile(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
