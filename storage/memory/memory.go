// Package memory provides an in-memory implementation of the users.Storage interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/mihaimyh/lemongate/pkg/users"
)

// Storage implements users.Storage using an in-memory map
type Storage struct {
	mu      sync.RWMutex
	records map[string]users.Record
	writes  int
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		records: make(map[string]users.Record),
	}
}

// UpsertUser implements users.Storage
func (s *Storage) UpsertUser(_ context.Context, update users.Update) error {
	if err := update.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[update.Email] = update.Apply(s.records[update.Email])
	s.writes++
	return nil
}

// GetUser implements users.Storage
func (s *Storage) GetUser(_ context.Context, email string) (*users.Record, error) {
	if strings.TrimSpace(email) == "" {
		return nil, users.ErrInvalidEmail
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[email]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	// Return a copy to prevent external mutations
	recCopy := rec
	return &recCopy, nil
}

// Writes returns the number of successful upserts since creation.
func (s *Storage) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
