// Package store provides session storage backends for chekbot.
//
// It includes an in-memory store (the default; the workflow does not require
// durability) plus SQLite and PostgreSQL backends behind the same interface.
package store

import (
	"strings"
	"sync"

	"github.com/avtotest/chekbot/internal/models"
)

// Store persists one session record per user. Implementations hold no
// business logic; all mutation goes through the workflow engine.
type Store interface {
	// GetSession returns the session for the given user, or nil if none exists.
	GetSession(userID string) (*models.Session, error)
	// SaveSession inserts or updates the session record.
	SaveSession(s models.Session) error
	// DeleteSession removes the session record if present. The workflow never
	// deletes sessions (completed ones are retained to keep converted users
	// quiet); this is an operational escape hatch for manually resetting a
	// user's conversation.
	DeleteSession(userID string) error
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for persistent store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-looking connection strings
// and "sqlite" otherwise (SQLite DSNs are file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps sessions in a process-local map. The engine serializes
// writes per user; the mutex here only guards the map across users.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

// GetSession returns a copy of the stored session, or nil if absent.
func (s *InMemoryStore) GetSession(userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

// SaveSession inserts or replaces the session record.
func (s *InMemoryStore) SaveSession(sess models.Session) error {
	if sess.UserID == "" {
		return models.ErrEmptyRecipient
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
	return nil
}

// DeleteSession removes the session record if present.
func (s *InMemoryStore) DeleteSession(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
