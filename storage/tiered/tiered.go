// Package tiered provides a Hot/Cold tiered users.Storage that pairs a fast
// cache (Hot, e.g. Redis) with a durable store (Cold, e.g. Firestore or
// Postgres). Cold is the source of truth.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mihaimyh/lemongate/pkg/users"
)

// ErrClosed is reported for Hot writes that arrive after Close.
var ErrClosed = errors.New("tiered storage closed")

// Config configures the tiered storage behavior
type Config struct {
	// Hot is the L1 cache storage (e.g., Redis, Memory)
	Hot users.Storage

	// Cold is the L2 persistence storage (e.g., Firestore, Postgres)
	Cold users.Storage

	// AsyncHotSync mirrors writes into Hot from a background worker instead
	// of inline. Cold is always written synchronously.
	AsyncHotSync bool

	// SyncBufferSize is the size of the buffered channel for async operations.
	// Default: 1000
	SyncBufferSize int

	// AsyncErrorHandler is called when a Hot write fails.
	AsyncErrorHandler func(error)
}

// Storage implements users.Storage over two backends:
// - Read-Through: GetUser (Hot → Cold → populate Hot)
// - Write-Through: UpsertUser (Cold, then Hot)
type Storage struct {
	hot  users.Storage
	cold users.Storage
	conf Config

	syncQueue chan func() error
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// mu orders enqueues against Close; closed is set before shutdown closes.
	mu     sync.RWMutex
	closed bool
}

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}

	if config.SyncBufferSize <= 0 {
		config.SyncBufferSize = 1000
	}

	s := &Storage{
		hot:       config.Hot,
		cold:      config.Cold,
		conf:      config,
		syncQueue: make(chan func() error, config.SyncBufferSize),
		shutdown:  make(chan struct{}),
	}

	if config.AsyncHotSync {
		s.startWorker()
	}

	return s, nil
}

// Close drains pending Hot writes and stops the worker.
func (s *Storage) Close() error {
	if s.conf.AsyncHotSync {
		s.closeOnce.Do(func() {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			close(s.shutdown)
			s.wg.Wait()
		})
	}
	return nil
}

// startWorker applies queued Hot writes in order.
func (s *Storage) startWorker() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case job := <-s.syncQueue:
				s.report(job())
			case <-s.shutdown:
				for {
					select {
					case job := <-s.syncQueue:
						s.report(job())
					default:
						return
					}
				}
			}
		}
	}()
}

func (s *Storage) report(err error) {
	if err != nil && s.conf.AsyncErrorHandler != nil {
		s.conf.AsyncErrorHandler(fmt.Errorf("tiered sync failed: %w", err))
	}
}

// GetUser implements users.Storage with read-through strategy.
func (s *Storage) GetUser(ctx context.Context, email string) (*users.Record, error) {
	rec, err := s.hot.GetUser(ctx, email)
	if err == nil {
		return rec, nil
	}

	rec, err = s.cold.GetUser(ctx, email)
	if err != nil {
		return nil, err
	}

	// Cache fill; errors are non-critical.
	_ = s.hot.UpsertUser(ctx, rec.AsUpdate()) //nolint:errcheck // Cache fill

	return rec, nil
}

// UpsertUser implements users.Storage with write-through strategy.
// The call fails only if Cold fails.
func (s *Storage) UpsertUser(ctx context.Context, update users.Update) error {
	if err := s.cold.UpsertUser(ctx, update); err != nil {
		return err
	}

	if !s.conf.AsyncHotSync {
		s.report(s.hot.UpsertUser(ctx, update))
		return nil
	}

	job := func() error {
		return s.hot.UpsertUser(context.Background(), update)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.report(fmt.Errorf("%w: dropped hot write for %s", ErrClosed, update.Email))
		return nil
	}
	select {
	case s.syncQueue <- job:
	default:
		s.report(fmt.Errorf("sync queue full, dropped hot write for %s", update.Email))
	}
	return nil
}
