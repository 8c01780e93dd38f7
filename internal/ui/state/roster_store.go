// Package state owns the console's in-memory roster and keeps it in sync with
// the re-streamer API.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Its-donkey/restreamer-console/internal/ui/model"
	streamersvc "github.com/Its-donkey/restreamer-console/internal/ui/streamers"
	"github.com/Its-donkey/restreamer-console/logging"
)

const logCategory = "roster"

var (
	// ErrRefreshInProgress is returned when Refresh is called while another refresh is in flight.
	ErrRefreshInProgress = errors.New("roster refresh already in progress")
	// ErrUnknownStreamer is returned when Toggle targets an id missing from the roster.
	ErrUnknownStreamer = errors.New("unknown streamer")
	// ErrTogglePending is returned when Toggle targets a streamer whose previous toggle is still in flight.
	ErrTogglePending = errors.New("streamer update already pending")
	// ErrDuplicateStreamer is returned when the API lists the same id twice.
	ErrDuplicateStreamer = errors.New("duplicate streamer id in response")
)

// API is the subset of the re-streamer API the store needs.
type API interface {
	FetchStreamers(ctx context.Context) ([]model.ServerStreamerRecord, error)
	SetEnabled(ctx context.Context, id string, enable bool) error
}

// RosterStore holds the streamer roster and mediates every change to it.
//
// Readers get copies through Snapshot/State or a subscription; writes only
// happen through Refresh and Toggle. The mutex is never held across a
// network call.
type RosterStore struct {
	api    API
	logger *logging.Logger

	mu          sync.Mutex
	refreshing  bool
	streamers   []model.Streamer
	inFlight    map[string]struct{}
	subscribers []chan<- model.RosterState
}

// NewRosterStore constructs an empty store. Call Start to load the roster.
func NewRosterStore(api API, logger *logging.Logger) *RosterStore {
	return &RosterStore{
		api:      api,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Start kicks off the initial refresh without waiting for it. The returned
// channel receives the refresh result and is then closed.
func (s *RosterStore) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.Refresh(ctx)
	}()
	return done
}

// Refresh replaces the roster with the API's current list.
//
// On failure the roster is left as it was. Streamers with a toggle still in
// flight keep PendingUpdate set in the new roster.
func (s *RosterStore) Refresh(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return ErrRefreshInProgress
	}
	s.refreshing = true
	s.publishLocked()
	s.mu.Unlock()

	var replacement []model.Streamer
	defer func() {
		s.mu.Lock()
		if err == nil {
			for i := range replacement {
				_, pending := s.inFlight[replacement[i].ID]
				replacement[i].PendingUpdate = pending
			}
			s.streamers = replacement
		}
		s.refreshing = false
		s.publishLocked()
		s.mu.Unlock()
	}()

	records, err := s.api.FetchStreamers(ctx)
	if err != nil {
		s.logFailure("refresh streamers", "", err)
		return fmt.Errorf("refresh streamers: %w", err)
	}

	replacement = make([]model.Streamer, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			err = fmt.Errorf("refresh streamers: %w: %q", ErrDuplicateStreamer, rec.ID)
			s.logger.Error(logCategory, "refresh streamers", err, nil)
			return err
		}
		seen[rec.ID] = struct{}{}
		replacement = append(replacement, model.FromServerRecord(rec))
	}
	s.logger.Debug(logCategory, "roster refreshed", map[string]any{"count": len(replacement)})
	return nil
}

// Toggle flips one streamer's enabled state on the server and, once the
// server accepts it, locally.
//
// The desired state is derived from the roster at call time. On failure
// Enabled keeps its previous value. The completion is applied by id, so a
// refresh that lands in between does not leave a stale entry behind.
func (s *RosterStore) Toggle(ctx context.Context, id string) (err error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("toggle %q: %w", id, ErrUnknownStreamer)
	}
	if _, pending := s.inFlight[id]; pending {
		s.mu.Unlock()
		return fmt.Errorf("toggle %q: %w", id, ErrTogglePending)
	}
	newEnabled := !s.streamers[idx].Enabled
	s.streamers[idx].PendingUpdate = true
	s.inFlight[id] = struct{}{}
	s.publishLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		if i := s.indexLocked(id); i >= 0 {
			if err == nil {
				s.streamers[i].Enabled = newEnabled
			}
			s.streamers[i].PendingUpdate = false
		} else {
			s.logger.Debug(logCategory, "toggle completed for streamer no longer listed", map[string]any{"id": id})
		}
		s.publishLocked()
		s.mu.Unlock()
	}()

	if err = s.api.SetEnabled(ctx, id, newEnabled); err != nil {
		s.logFailure("toggle streamer", id, err)
		return fmt.Errorf("toggle %q: %w", id, err)
	}
	s.logger.Info(logCategory, "streamer toggled", map[string]any{"id": id, "enabled": newEnabled})
	return nil
}

// Snapshot returns a copy of the current roster.
//
// Callers can safely modify the returned slice without affecting the store.
func (s *RosterStore) Snapshot() []model.Streamer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// State returns the roster together with the refresh flag.
func (s *RosterStore) State() model.RosterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.RosterState{Refreshing: s.refreshing, Streamers: s.copyLocked()}
}

// Streamer looks up one streamer by id.
func (s *RosterStore) Streamer(id string) (model.Streamer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.streamers[idx], true
	}
	return model.Streamer{}, false
}

// IsRefreshing reports whether a refresh is in flight.
func (s *RosterStore) IsRefreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// Subscribe registers ch for state changes. Sends never block; a full
// channel misses that update. The returned func unsubscribes.
func (s *RosterStore) Subscribe(ch chan<- model.RosterState) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, ch)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
	}
}

func (s *RosterStore) indexLocked(id string) int {
	for i := range s.streamers {
		if s.streamers[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *RosterStore) copyLocked() []model.Streamer {
	cp := make([]model.Streamer, len(s.streamers))
	copy(cp, s.streamers)
	return cp
}

func (s *RosterStore) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- model.RosterState{Refreshing: s.refreshing, Streamers: s.copyLocked()}:
		default:
		}
	}
}

func (s *RosterStore) logFailure(message, id string, err error) {
	var fields map[string]any
	if id != "" {
		fields = map[string]any{"id": id}
	}
	var statusErr *streamersvc.StatusError
	if errors.As(err, &statusErr) {
		if fields == nil {
			fields = make(map[string]any)
		}
		fields["status"] = statusErr.StatusCode
		s.logger.Warn(logCategory, message+": unexpected status", fields)
		return
	}
	s.logger.Error(logCategory, message, err, fields)
}
