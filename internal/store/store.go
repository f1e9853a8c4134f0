package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound is returned by GetJSON when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the shared cache surface used by the adapters: JSON values in
// Redis with optional expiry, plus health reporting.
type Store interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore is Redis-first with an optional Postgres pool that callers use
// for durable writes (see internal/audit).
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// RedisConfig addresses the Redis instance.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// NewHybrid connects to Redis and, when pgURL is set, to Postgres.
func NewHybrid(rc RedisConfig, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		DB:       rc.DB,
		Password: rc.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	pgPool, err := NewPGPool(ctx, pgURL, pgPoolConfig)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// NewFromClients wraps already-connected clients. pg may be nil.
func NewFromClients(rdb *redis.Client, pg *pgxpool.Pool, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, PG: pg, logger: logger}
}

// NewPGPool opens a pgx pool with the overrides in cfg. An empty url yields a nil pool.
func NewPGPool(ctx context.Context, url string, pc PGPoolConfig) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, nil
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// SetJSON stores value under key. A ttl of zero or less stores without expiry.
func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("store.redis.set_failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetJSON decodes the value at key into dest, returning ErrNotFound on a miss.
func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key).Err()
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
