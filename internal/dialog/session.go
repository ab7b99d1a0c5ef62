package dialog

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type State int

const (
	StateAwaitingUser State = iota
	StateAwaitingAmount
	StateAwaitingService
	StateAwaitingConfirmation
)

// Session holds the input accumulated across one admin's invoice-creation
// dialog. Sessions are scoped per admin and never interact.
type Session struct {
	State          State
	UserTelegramID int64
	UserDisplay    string
	Amount         decimal.Decimal
	Description    string
	UpdatedAt      time.Time
}

// Store keeps at most one active session per admin. Abandoned sessions
// are evicted after the TTL, both lazily on access and by Sweep.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Begin starts a fresh session for the admin, replacing any existing one.
// Starting over is the last-writer-wins resolution for concurrent
// commands from the same admin.
func (s *Store) Begin(adminID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{State: StateAwaitingUser, UpdatedAt: s.now()}
	s.sessions[adminID] = sess
	return sess
}

// Get returns the admin's live session, or nil when none exists or the
// existing one has outlived the TTL.
func (s *Store) Get(adminID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[adminID]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, adminID)
		return nil
	}
	return sess
}

// Touch refreshes the session's eviction deadline.
func (s *Store) Touch(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[adminID]; ok {
		sess.UpdatedAt = s.now()
	}
}

// Clear removes the admin's session.
func (s *Store) Clear(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, adminID)
}

// Sweep evicts every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for adminID, sess := range s.sessions {
		if s.now().Sub(sess.UpdatedAt) > s.ttl {
			delete(s.sessions, adminID)
			removed++
		}
	}
	return removed
}
