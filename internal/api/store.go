package api

import (
	"errors"
	"sync"

	"github.com/Its-donkey/restreamer-console/internal/config"
	"github.com/Its-donkey/restreamer-console/internal/ui/model"
)

// ErrNotFound reports an unknown re-streamer id.
var ErrNotFound = errors.New("restreamer not found")

// Store keeps the configured re-streamers in configuration order.
type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]config.Restreamer
}

// NewStore copies restreamers into a new Store. Ids are expected to be unique,
// as guaranteed by config.Load; later duplicates are ignored.
func NewStore(restreamers []config.Restreamer) *Store {
	s := &Store{
		order:   make([]string, 0, len(restreamers)),
		entries: make(map[string]config.Restreamer, len(restreamers)),
	}
	for _, r := range restreamers {
		if _, exists := s.entries[r.ID]; exists {
			continue
		}
		s.order = append(s.order, r.ID)
		s.entries[r.ID] = r
	}
	return s
}

// List returns the wire records in configuration order.
func (s *Store) List() []model.ServerStreamerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.ServerStreamerRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, toRecord(s.entries[id]))
	}
	return records
}

// Get returns the wire record for one re-streamer.
func (s *Store) Get(id string) (model.ServerStreamerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[id]
	if !ok {
		return model.ServerStreamerRecord{}, ErrNotFound
	}
	return toRecord(r), nil
}

// The publish key itself never leaves the server.
func toRecord(r config.Restreamer) model.ServerStreamerRecord {
	return model.ServerStreamerRecord{
		ID:          r.ID,
		Source:      r.Source,
		Description: r.Description,
		Key:         r.Key != "",
		Enabled:     r.Enabled,
	}
}

// SetEnabled updates the enabled flag and reports whether it changed.
func (s *Store) SetEnabled(id string, enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	changed := r.Enabled != enabled
	r.Enabled = enabled
	s.entries[id] = r
	return changed, nil
}
