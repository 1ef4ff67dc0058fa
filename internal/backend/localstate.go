package backend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LocalState persists the hide/purge decisions the hosted REST API has no
// concept of. It is device-local and does not propagate across devices for
// the same account; the live store does not have this asymmetry.
type LocalState struct {
	path string

	mu   sync.Mutex
	data localStateData
}

type localStateData struct {
	// Hidden maps userID -> conversationID -> true.
	Hidden map[string]map[string]bool `json:"hidden"`
	// PurgedAt maps userID -> conversationID -> cutoff.
	PurgedAt map[string]map[string]time.Time `json:"purged_at"`
}

// OpenLocalState loads (or initializes) the state file under dir.
func OpenLocalState(dir string) (*LocalState, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &LocalState{
		path: filepath.Join(dir, "rest_state.json"),
		data: localStateData{
			Hidden:   make(map[string]map[string]bool),
			PurgedAt: make(map[string]map[string]time.Time),
		},
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// A corrupt state file only loses hide/purge overlays; start fresh.
		s.data = localStateData{
			Hidden:   make(map[string]map[string]bool),
			PurgedAt: make(map[string]map[string]time.Time),
		}
	}
	if s.data.Hidden == nil {
		s.data.Hidden = make(map[string]map[string]bool)
	}
	if s.data.PurgedAt == nil {
		s.data.PurgedAt = make(map[string]map[string]time.Time)
	}
	return s, nil
}

func (s *LocalState) Hide(userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Hidden[userID] == nil {
		s.data.Hidden[userID] = make(map[string]bool)
	}
	s.data.Hidden[userID][conversationID] = true
	return s.save()
}

// Unhide drops the hide overlay so a reopened conversation shows up in the
// directory again. A no-op when nothing was hidden.
func (s *LocalState) Unhide(userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.data.Hidden[userID][conversationID] {
		return nil
	}
	delete(s.data.Hidden[userID], conversationID)
	return s.save()
}

func (s *LocalState) IsHidden(userID, conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Hidden[userID][conversationID]
}

// SetPurged records a purge cutoff, moving it forward only so re-purging
// stays idempotent.
func (s *LocalState) SetPurged(userID, conversationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.PurgedAt[userID] == nil {
		s.data.PurgedAt[userID] = make(map[string]time.Time)
	}
	if existing, ok := s.data.PurgedAt[userID][conversationID]; ok && !existing.Before(at) {
		return nil
	}
	s.data.PurgedAt[userID][conversationID] = at
	return s.save()
}

func (s *LocalState) Purged(userID, conversationID string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.data.PurgedAt[userID][conversationID]; ok {
		return &at
	}
	return nil
}

// save writes via a temp file and rename, so a crash mid-write never leaves
// a truncated state file behind.
func (s *LocalState) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
