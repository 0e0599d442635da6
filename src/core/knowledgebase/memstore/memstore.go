package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"govrag/src/core/knowledgebase"
)

// Store keeps sessions in process memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*knowledgebase.ChatSession
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used to stamp new sessions
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty in-memory SessionStore
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*knowledgebase.ChatSession),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(ctx context.Context) (*knowledgebase.ChatSession, error) {
	sess := knowledgebase.NewChatSession(uuid.NewString(), s.now().UTC())

	s.mu.Lock()
	s.sessions[sess.SessionID] = sess
	s.mu.Unlock()

	return sess.Clone(), nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*knowledgebase.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *Store) Save(ctx context.Context, sess *knowledgebase.ChatSession) error {
	s.mu.Lock()
	s.sessions[sess.SessionID] = sess.Clone()
	s.mu.Unlock()
	return nil
}

// Len returns the number of sessions held, expired ones included
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions inactive for longer than window and returns how many were removed
func (s *Store) Sweep(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.IsExpired(now, window) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done
func (s *Store) RunSweeper(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Sweep(t, window)
		}
	}
}
