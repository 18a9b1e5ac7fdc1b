package firestore

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"

	"github.com/mihaimyh/lemongate/pkg/users"
)

// Lazy is a users.Storage whose Firestore client is created on first use and
// then shared for the lifetime of the process.
//
// At most one client is ever created successfully. A failed attempt is not
// cached; the next call tries again.
type Lazy struct {
	mu      sync.Mutex
	dial    func(ctx context.Context) (*firestore.Client, error)
	config  Config
	storage *Storage
}

// NewLazy returns a Lazy storage that dials Firestore with creds.
func NewLazy(creds Credentials, config Config) *Lazy {
	return &Lazy{
		dial: func(ctx context.Context) (*firestore.Client, error) {
			return NewClient(ctx, creds)
		},
		config: config,
	}
}

// Storage returns the shared storage, creating the client if needed.
func (l *Lazy) Storage(ctx context.Context) (*Storage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.storage != nil {
		return l.storage, nil
	}

	// The client outlives the request that happens to create it.
	client, err := l.dial(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", users.ErrStorageUnavailable, err)
	}
	s, err := New(client, l.config)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	l.storage = s
	return s, nil
}

// UpsertUser implements users.Storage
func (l *Lazy) UpsertUser(ctx context.Context, update users.Update) error {
	s, err := l.Storage(ctx)
	if err != nil {
		return err
	}
	return s.UpsertUser(ctx, update)
}

// GetUser implements users.Storage
func (l *Lazy) GetUser(ctx context.Context, email string) (*users.Record, error) {
	s, err := l.Storage(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, email)
}

// Close closes the client if one was created.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.storage == nil {
		return nil
	}
	err := l.storage.Close()
	l.storage = nil
	return err
}
