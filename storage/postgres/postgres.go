// Package postgres provides a PostgreSQL implementation of the users.Storage interface.
// Records are stored as one jsonb document per email; upserts concatenate the
// new fields onto the stored document, so absent fields keep their values.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/lemongate/pkg/users"
)

const defaultTable = "users"

// Storage implements users.Storage using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
	table  string
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Table holds user records (default: "users")
	Table string

	// CreateTable runs CREATE TABLE IF NOT EXISTS on startup
	CreateTable bool

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Table:           defaultTable,
		CreateTable:     true,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if config.Table == "" {
		config.Table = defaultTable
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{
		pool:   pool,
		config: config,
		table:  pgx.Identifier{config.Table}.Sanitize(),
	}

	if config.CreateTable {
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// EnsureSchema creates the users table if it does not exist.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		email      TEXT PRIMARY KEY,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.table))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertUser implements users.Storage
func (s *Storage) UpsertUser(ctx context.Context, update users.Update) error {
	if err := update.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(update.Fields())
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %[1]s (email, data) VALUES ($1, $2::jsonb)
			ON CONFLICT (email) DO UPDATE
			SET data = %[1]s.data || EXCLUDED.data, updated_at = now()`, s.table),
		update.Email, string(data))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser implements users.Storage
func (s *Storage) GetUser(ctx context.Context, email string) (*users.Record, error) {
	if strings.TrimSpace(email) == "" {
		return nil, users.ErrInvalidEmail
	}

	var data []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE email = $1`, s.table),
		email).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var rec users.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	if rec.Email == "" {
		rec.Email = email
	}
	return &rec, nil
}
