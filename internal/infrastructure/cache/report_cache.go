// Package cache stores the most recent run reports so the status
// endpoint can answer without re-running the pipeline.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
)

// Report kinds stored by the cache.
const (
	ReportKindSweep   = syncapp.KindSweep
	ReportKindRefresh = syncapp.KindRefresh
)

// ReportCache holds the latest run report per kind.
type ReportCache interface {
	StoreReport(ctx context.Context, kind string, report *syncapp.RunReport) error
	LatestReport(ctx context.Context, kind string) (*syncapp.RunReport, error)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisReportCache implements ReportCache on Redis. This is suitable for
// distributed deployments where multiple instances share report state.
type RedisReportCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

const defaultReportTTL = 48 * time.Hour

// NewRedisReportCache creates a Redis-backed report cache.
func NewRedisReportCache(cfg RedisConfig) (*RedisReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisReportCache{
		client:    client,
		keyPrefix: "sync:report:",
		ttl:       defaultReportTTL,
	}, nil
}

// NewRedisReportCacheWithClient creates a cache with an existing Redis
// client. This is useful for testing or when sharing a client across
// components.
func NewRedisReportCacheWithClient(client *redis.Client, keyPrefix string) *RedisReportCache {
	if keyPrefix == "" {
		keyPrefix = "sync:report:"
	}
	return &RedisReportCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       defaultReportTTL,
	}
}

// StoreReport saves the report as the latest of its kind.
func (c *RedisReportCache) StoreReport(ctx context.Context, kind string, report *syncapp.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+kind, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store run report: %w", err)
	}
	return nil
}

// LatestReport returns the newest stored report of the kind, or nil when
// none has been recorded yet.
func (c *RedisReportCache) LatestReport(ctx context.Context, kind string) (*syncapp.RunReport, error) {
	payload, err := c.client.Get(ctx, c.keyPrefix+kind).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}

	var report syncapp.RunReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}

// Close closes the Redis client
func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

// Ensure RedisReportCache implements ReportCache
var _ ReportCache = (*RedisReportCache)(nil)
