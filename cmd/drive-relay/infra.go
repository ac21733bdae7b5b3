package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/drive-relay/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/drive-relay/internal/adapters/driven/redis"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// infra holds the shared stores and lock.
type infra struct {
	db          *postgres.DB
	redisClient *redis.Client

	pending     driven.PendingAuthorizationStore
	credentials driven.CredentialStore
	lock        driven.DistributedLock
}

func connectPostgres(ctx context.Context) (*postgres.DB, error) {
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Database.ConnMaxIdleSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// openInfra connects PostgreSQL and, when REDIS_URL is set, Redis. Redis then
// backs pending authorizations and the distributed lock; otherwise both live
// in PostgreSQL.
func openInfra(ctx context.Context) (*infra, error) {
	db, err := connectPostgres(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	key, err := cfg.TokenKey()
	if err != nil {
		db.Close()
		return nil, err
	}
	cipher, err := postgres.NewTokenCipher(key)
	if err != nil {
		db.Close()
		return nil, err
	}

	in := &infra{
		db:          db,
		credentials: postgres.NewCredentialStore(db, cipher),
	}

	if cfg.Redis.URL == "" {
		in.pending = postgres.NewPendingAuthorizationStore(db)
		in.lock = postgres.NewAdvisoryLock(db)
		slog.Info("using PostgreSQL pending store and advisory lock")
		return in, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("parse Redis URL: %w", err)
	}
	in.redisClient = redis.NewClient(opts)
	if err := in.redisClient.Ping(ctx).Err(); err != nil {
		in.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	in.pending = redisadapter.NewPendingAuthorizationStore(in.redisClient, cfg.PendingTTL())
	in.lock = redisadapter.NewLock(in.redisClient)
	slog.Info("using Redis pending store and distributed lock")
	return in, nil
}

func (in *infra) Close() {
	if in.redisClient != nil {
		in.redisClient.Close()
	}
	in.db.Close()
}
