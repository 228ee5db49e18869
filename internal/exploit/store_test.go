package exploit

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zabe-dev/smuggler/internal/detect"
)

func fixedStore(dir string) *Store {
	s := NewStore(dir)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestPersist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	s := fixedStore(dir)

	path, err := s.Persist("api.example.com", detect.ClassCLTE, []byte("POST / HTTP/1.1\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "CLTE_EXPLOIT_api_example_com_1700000000.txt"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "POST / HTTP/1.1\r\n\r\n" {
		t.Errorf("content = %q", data)
	}
}

func TestPersist_NeverOverwrites(t *testing.T) {
	s := fixedStore(t.TempDir())

	first, err := s.Persist("a.test", detect.ClassTECL, []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Persist("a.test", detect.ClassTECL, []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("both writes went to %q", first)
	}
	if filepath.Base(second) != "TECL_EXPLOIT_a_test_1700000000_2.txt" {
		t.Errorf("second = %q", second)
	}
	if data, _ := os.ReadFile(first); string(data) != "one" {
		t.Errorf("first artifact overwritten: %q", data)
	}
}

func TestPersist_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := fixedStore(filepath.Join(blocker, "sub"))
	if _, err := s.Persist("a.test", detect.ClassCLTE, []byte("x")); !errors.Is(err, ErrPersist) {
		t.Errorf("err = %v, want ErrPersist", err)
	}
}

func TestPersist_ZeroValueStore(t *testing.T) {
	s := &Store{Dir: t.TempDir()}
	path, err := s.Persist("a.test", detect.ClassCLTE, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(filepath.Base(path), "CLTE_EXPLOIT_a_test_") {
		t.Errorf("path = %q", path)
	}
}

type failingWriter struct {
	io.WriteCloser
}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPersist_FailedWriteLeavesNoFile(t *testing.T) {
	orig := createExclusive
	t.Cleanup(func() { createExclusive = orig })
	createExclusive = func(path string) (io.WriteCloser, error) {
		f, err := orig(path)
		if err != nil {
			return nil, err
		}
		return failingWriter{f}, nil
	}

	dir := t.TempDir()
	s := fixedStore(dir)
	if _, err := s.Persist("a.test", detect.ClassTECL, []byte("x")); !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("partial artifact left behind: %v", entries[0].Name())
	}

	createExclusive = orig
	path, err := s.Persist("a.test", detect.ClassTECL, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "TECL_EXPLOIT_a_test_1700000000.txt" {
		t.Errorf("name not reused: %q", path)
	}
}

func TestSanitizeHost(t *testing.T) {
	tests := map[string]string{
		"example.com":   "example_com",
		"my-host.local": "my-host_local",
		"::1":           "__1",
		"10.0.0.1":      "10_0_0_1",
	}
	for in, want := range tests {
		if got := SanitizeHost(in); got != want {
			t.Errorf("SanitizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}
