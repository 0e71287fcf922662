package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pocketomega/pocket-planner/internal/planner"
)

// minCleanupInterval is the smallest allowed TTL to prevent degenerate ticker intervals.
const minCleanupInterval = time.Millisecond

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Factory creates the planner session for a new id.
type Factory func(id, runContext string) (*planner.Session, error)

type entry struct {
	sess     *planner.Session
	lastUsed time.Time
}

// Store is a thread-safe in-memory registry of interactive planner sessions
// with TTL eviction. Single process only.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration // inactivity TTL, e.g. 30 minutes
	factory  Factory
	done     chan struct{} // closed by Close() to stop the cleanup goroutine
	now      func() time.Time
}

// NewStore creates a Store that builds sessions with factory. A background
// goroutine evicts sessions idle for longer than ttl; call Close() to stop it.
func NewStore(ttl time.Duration, factory Factory) *Store {
	if ttl < minCleanupInterval {
		ttl = minCleanupInterval
	}
	s := &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		factory:  factory,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go s.cleanupLoop()
	return s
}

// Create starts a new session under a fresh random id.
func (s *Store) Create(runContext string) (*planner.Session, error) {
	id := uuid.NewString()
	sess, err := s.factory(id, runContext)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{sess: sess, lastUsed: s.now()}
	return sess, nil
}

// Get returns the session and marks it used.
func (s *Store) Get(id string) (*planner.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastUsed = s.now()
	return e.sess, nil
}

// GetOrCreate returns the session for id, creating it under that id when it
// does not exist yet.
func (s *Store) GetOrCreate(id, runContext string) (*planner.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.lastUsed = s.now()
		return e.sess, nil
	}
	sess, err := s.factory(id, runContext)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = &entry{sess: sess, lastUsed: s.now()}
	return sess, nil
}

// Delete removes a session. Reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
}

// evictExpired removes sessions idle since before now-ttl and returns how
// many were dropped.
func (s *Store) evictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, e := range s.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// cleanupLoop periodically removes sessions that have exceeded the TTL.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}
