package resume

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"
)

// State records which targets of a scan have finished so an interrupted
// run can pick up where it stopped.
type State struct {
	Targets   []string  `json:"targets"`
	Completed []string  `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`

	mu   sync.Mutex
	path string
	done map[string]struct{}
}

// New creates an empty state for targets, saved to path.
func New(path string, targets []string) *State {
	return &State{
		Targets: slices.Clone(targets),
		path:    path,
		done:    make(map[string]struct{}),
	}
}

// Load reads a state file. It returns nil, nil when the file does not exist.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading resume file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing resume file: %w", err)
	}
	s.path = path
	s.done = make(map[string]struct{}, len(s.Completed))
	for _, t := range s.Completed {
		s.done[t] = struct{}{}
	}
	return &s, nil
}

// Matches reports whether the state was written for the same target list.
func (s *State) Matches(targets []string) bool {
	return slices.Equal(s.Targets, targets)
}

func (s *State) IsCompleted(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[target]
	return ok
}

// MarkCompleted records target as finished. Repeats are ignored.
func (s *State) MarkCompleted(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.done[target]; ok {
		return
	}
	s.done[target] = struct{}{}
	s.Completed = append(s.Completed, target)
}

// FilterRemaining returns the targets not yet completed, in input order.
func (s *State) FilterRemaining(targets []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var remaining []string
	for _, t := range targets {
		if _, ok := s.done[t]; !ok {
			remaining = append(remaining, t)
		}
	}
	return remaining
}

// Save writes the state to disk, replacing the previous file atomically.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing resume state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing resume file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Remove deletes the state file once the scan completes.
func (s *State) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
