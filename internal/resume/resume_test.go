package resume

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadMissing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "none.state"))
	if err != nil || s != nil {
		t.Fatalf("Load() = %v, %v; want nil, nil", s, err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.state")
	targets := []string{"https://a.test", "https://b.test", "https://c.test"}

	s := New(path, targets)
	s.MarkCompleted("https://b.test")
	s.MarkCompleted("https://b.test")
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Matches(targets) {
		t.Errorf("targets = %v", got.Targets)
	}
	if len(got.Completed) != 1 || !got.IsCompleted("https://b.test") {
		t.Errorf("completed = %v", got.Completed)
	}
	want := []string{"https://a.test", "https://c.test"}
	if rem := got.FilterRemaining(targets); !slices.Equal(rem, want) {
		t.Errorf("FilterRemaining() = %v, want %v", rem, want)
	}
	if got.Matches(targets[:2]) {
		t.Error("Matches() true for a different list")
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.state")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.state")
	s := New(path, nil)
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("state file still present: %v", err)
	}
	if err := s.Remove(); err != nil {
		t.Errorf("second Remove() = %v", err)
	}
}
