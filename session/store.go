// Package session keeps per-browser state for the web UI: the form state and
// the most recent test outcome. Nothing is persisted; entries disappear when
// they sit idle longer than the TTL.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bughunter/appstate"
	"bughunter/logger"
	"bughunter/results"
)

type entry struct {
	state      []byte
	outcome    []byte
	lastAccess time.Time
}

// Store is an in-memory session store. Values are kept encoded so a reader
// never shares memory with a writer.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
}

// NewStore creates a store whose entries expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Create starts a new session with the initial form state.
func (s *Store) Create() (string, error) {
	data, err := appstate.New().Encode()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &entry{state: data, lastAccess: s.now()}
	s.mu.Unlock()
	logger.Debug("session.create", zap.String("session_id", id))
	return id, nil
}

// Exists reports whether id names a live session.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(id)
	return ok
}

// lookup returns a live entry and refreshes its access time. Callers hold mu.
func (s *Store) lookup(id string) (*entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(e.lastAccess) > s.ttl {
		delete(s.entries, id)
		return nil, false
	}
	e.lastAccess = now
	return e, true
}

// State returns a copy of the session's form state.
func (s *Store) State(id string) (*appstate.State, error) {
	s.mu.Lock()
	e, ok := s.lookup(id)
	var data []byte
	if ok {
		data = e.state
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return appstate.Decode(data)
}

// Update loads the state, applies fn and stores the result unless fn fails.
// On failure the stored, unmodified state is returned with the error.
// The whole cycle holds the session lock, so concurrent updates do not lose writes.
func (s *Store) Update(id string, fn func(*appstate.State) error) (*appstate.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	st, err := appstate.Decode(e.state)
	if err != nil {
		return nil, err
	}
	before := st.Clone()
	if err := fn(st); err != nil {
		return before, err
	}
	data, err := st.Encode()
	if err != nil {
		return nil, err
	}
	e.state = data
	return st, nil
}

// SaveState replaces the session's form state.
func (s *Store) SaveState(id string, st *appstate.State) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	e.state = data
	return nil
}

// SaveOutcome stores the latest test outcome, replacing any previous one.
func (s *Store) SaveOutcome(id string, o results.Outcome) error {
	data, err := o.Encode()
	if err != nil {
		return err
	}
	return s.SaveRawOutcome(id, data)
}

// SaveRawOutcome stores already encoded outcome bytes.
func (s *Store) SaveRawOutcome(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	e.outcome = append([]byte(nil), data...)
	return nil
}

// Outcome returns the stored outcome. ok is false when nothing was stored yet.
// A stored value that cannot be decoded returns its decode error.
func (s *Store) Outcome(id string) (o results.Outcome, ok bool, err error) {
	s.mu.Lock()
	e, live := s.lookup(id)
	var data []byte
	if live {
		data = e.outcome
	}
	s.mu.Unlock()
	if !live {
		return results.Outcome{}, false, ErrNotFound
	}
	if data == nil {
		return results.Outcome{}, false, nil
	}
	o, err = results.DecodeOutcome(data)
	if err != nil {
		return results.Outcome{}, true, err
	}
	return o, true, nil
}

// ClearOutcome forgets the stored outcome.
func (s *Store) ClearOutcome(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.lookup(id); ok {
		e.outcome = nil
	}
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.lastAccess) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("session.sweep: expired", zap.Int("removed", removed), zap.Int("live", len(s.entries)))
	}
	return removed
}

// Len returns the number of sessions held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
