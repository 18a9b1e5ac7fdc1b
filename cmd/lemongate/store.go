package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/lemongate/internal/config"
	"github.com/mihaimyh/lemongate/pkg/users"
	"github.com/mihaimyh/lemongate/storage/circuitbreaker"
	"github.com/mihaimyh/lemongate/storage/firestore"
	"github.com/mihaimyh/lemongate/storage/memory"
	"github.com/mihaimyh/lemongate/storage/postgres"
	"github.com/mihaimyh/lemongate/storage/redis"
	"github.com/mihaimyh/lemongate/storage/tiered"
)

// openStore builds the configured users.Storage. The returned func releases
// its connections.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (users.Storage, func(), error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store; records are lost on restart")
		return memory.New(), func() {}, nil

	case config.StoreFirestore, config.StorePostgres:
		return openDurable(ctx, cfg.Store.Kind, cfg, logger)

	case config.StoreRedis:
		return openRedis(cfg)

	case config.StoreTiered:
		cold, closeCold, err := openDurable(ctx, cfg.Store.TieredCold, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		hot, closeHot, err := openRedis(cfg)
		if err != nil {
			closeCold()
			return nil, nil, err
		}
		s, err := tiered.New(tiered.Config{
			Hot:          hot,
			Cold:         cold,
			AsyncHotSync: true,
			AsyncErrorHandler: func(err error) {
				logger.Warn().Err(err).Msg("cache write failed")
			},
		})
		if err != nil {
			closeHot()
			closeCold()
			return nil, nil, err
		}
		return s, func() {
			_ = s.Close()
			closeHot()
			closeCold()
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store.Kind)
}

func openDurable(ctx context.Context, kind string, cfg *config.Config, logger zerolog.Logger) (users.Storage, func(), error) {
	switch kind {
	case config.StoreFirestore:
		// The client is created on the first delivery, not at startup.
		lazy := firestore.NewLazy(firestore.Credentials{
			ProjectID:   cfg.Firebase.ProjectID,
			ClientEmail: cfg.Firebase.ClientEmail,
			PrivateKey:  cfg.Firebase.PrivateKey,
		}, firestore.Config{UsersCollection: cfg.Store.UsersCollection})
		return guard(lazy, cfg.Store.Breaker, kind, logger), func() {
			if err := lazy.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close firestore client")
			}
		}, nil

	case config.StorePostgres:
		pgConfig := postgres.DefaultConfig()
		pgConfig.ConnectionString = cfg.Store.Postgres.DSN
		pgConfig.Table = cfg.Store.UsersCollection
		s, err := postgres.New(ctx, pgConfig)
		if err != nil {
			return nil, nil, err
		}
		return guard(s, cfg.Store.Breaker, kind, logger), s.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown durable store %q", kind)
}

// guard puts a circuit breaker in front of a durable store.
func guard(s users.Storage, cfg config.BreakerConfig, kind string, logger zerolog.Logger) users.Storage {
	if cfg.Threshold <= 0 {
		return s
	}
	breaker := circuitbreaker.NewBreaker(cfg.Threshold, cfg.ResetTimeout, func(state circuitbreaker.State) {
		logger.Warn().Str("store", kind).Str("state", string(state)).Msg("store circuit breaker changed state")
	})
	return circuitbreaker.New(s, breaker)
}

func openRedis(cfg *config.Config) (users.Storage, func(), error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Store.Redis.Addr,
		Password: cfg.Store.Redis.Password,
		DB:       cfg.Store.Redis.DB,
	})
	s, err := redis.New(client, redis.DefaultConfig())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
