// Package redis provides a Redis implementation of the users.Storage interface.
// Each user is one hash; HSET only touches the fields it names, which gives
// the same merge semantics as a Firestore merge write.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/lemongate/pkg/users"
)

const defaultKeyPrefix = "lemongate:"

// Storage implements users.Storage using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "lemongate:")
	KeyPrefix string

	// UserTTL is refreshed on every write (0 = no expiration)
	UserTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: defaultKeyPrefix,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}

	return &Storage{
		client: client,
		config: config,
	}, nil
}

// UpsertUser implements users.Storage
func (s *Storage) UpsertUser(ctx context.Context, update users.Update) error {
	if err := update.Validate(); err != nil {
		return err
	}

	values := make(map[string]interface{})
	for k, v := range update.Fields() {
		if t, ok := v.(time.Time); ok {
			values[k] = t.UTC().Format(time.RFC3339Nano)
			continue
		}
		values[k] = v
	}

	key := s.userKey(update.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if s.config.UserTTL > 0 {
			pipe.Expire(ctx, key, s.config.UserTTL)
		}
		return nil
	})
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

	values, err := s.client.HGetAll(ctx, s.userKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(values) == 0 {
		return nil, users.ErrUserNotFound
	}

	return decodeRecord(email, values)
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) userKey(email string) string {
	return fmt.Sprintf("%suser:%s", s.config.KeyPrefix, email)
}

func decodeRecord(email string, values map[string]string) (*users.Record, error) {
	rec := &users.Record{
		Email:              email,
		Subscription:       users.Plan(values[users.FieldSubscription]),
		SubscriptionType:   users.Term(values[users.FieldSubscriptionType]),
		SubscriptionStatus: values[users.FieldSubscriptionStatus],
		OrderID:            values[users.FieldOrderID],
		SubscriptionID:     values[users.FieldSubscriptionID],
		ProductName:        values[users.FieldProductName],
	}
	if stored := values[users.FieldEmail]; stored != "" {
		rec.Email = stored
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{users.FieldPurchaseDate, &rec.PurchaseDate},
		{users.FieldSubscriptionStart, &rec.SubscriptionStartDate},
		{users.FieldLastUpdated, &rec.LastUpdated},
	}
	for _, tf := range times {
		raw, ok := values[tf.field]
		if !ok || raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", tf.field, err)
		}
		*tf.dst = t
	}

	return rec, nil
}
