// Package cache keeps each tenant's active guidelines in Redis so evaluation
// does not reload them from PostgreSQL on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/metrics"
	"github.com/keystone-uw/underwriting-engine/pkg/underwriting"
)

const activeGuidelinesKeyPrefix = "uw:guidelines:active:"

// GuidelineCache stores the active guidelines of a tenant.
// Cache failures are logged and reported as misses, never returned.
type GuidelineCache interface {
	// GetActive returns the cached guidelines and true on a hit.
	GetActive(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, bool)
	SetActive(ctx context.Context, tenantID uuid.UUID, guidelines []*underwriting.Guideline)
	// Invalidate drops the tenant's entry after any guideline change.
	Invalidate(ctx context.Context, tenantID uuid.UUID)
}

// store is the subset of Redis commands the cache needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.client.Get(ctx, key).Bytes()
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

type guidelineCache struct {
	store   store
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewGuidelineCache creates a Redis-backed cache. A nil client (Redis not
// configured) yields a cache that always misses.
func NewGuidelineCache(client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) GuidelineCache {
	if client == nil {
		return noopCache{metrics: m}
	}
	return newGuidelineCache(&redisStore{client: client}, ttl, m, logger)
}

func newGuidelineCache(s store, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *guidelineCache {
	return &guidelineCache{
		store:   s,
		ttl:     ttl,
		metrics: m,
		logger:  logger.Named("guideline-cache"),
	}
}

var _ GuidelineCache = (*guidelineCache)(nil)

func activeKey(tenantID uuid.UUID) string {
	return activeGuidelinesKeyPrefix + tenantID.String()
}

func (c *guidelineCache) GetActive(ctx context.Context, tenantID uuid.UUID) ([]*underwriting.Guideline, bool) {
	data, err := c.store.Get(ctx, activeKey(tenantID))
	if errors.Is(err, redis.Nil) {
		c.metrics.IncrementCacheLookup("miss")
		return nil, false
	}
	if err != nil {
		c.metrics.IncrementCacheLookup("error")
		c.logger.Warn("Failed to read guideline cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return nil, false
	}

	var guidelines []*underwriting.Guideline
	if err := json.Unmarshal(data, &guidelines); err != nil {
		c.metrics.IncrementCacheLookup("error")
		c.logger.Warn("Discarding unreadable guideline cache entry",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		c.Invalidate(ctx, tenantID)
		return nil, false
	}

	c.metrics.IncrementCacheLookup("hit")
	return guidelines, true
}

func (c *guidelineCache) SetActive(ctx context.Context, tenantID uuid.UUID, guidelines []*underwriting.Guideline) {
	if guidelines == nil {
		guidelines = []*underwriting.Guideline{}
	}
	data, err := json.Marshal(guidelines)
	if err != nil {
		c.logger.Error("Failed to encode guidelines for cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, activeKey(tenantID), data, c.ttl); err != nil {
		c.logger.Warn("Failed to write guideline cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
}

func (c *guidelineCache) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	if err := c.store.Del(ctx, activeKey(tenantID)); err != nil {
		// A stale entry survives until its TTL.
		c.logger.Error("Failed to invalidate guideline cache",
			zap.String("tenant_id", tenantID.String()),
			zap.Duration("ttl", c.ttl),
			zap.Error(err))
	}
}

type noopCache struct {
	metrics *metrics.Metrics
}

func (n noopCache) GetActive(context.Context, uuid.UUID) ([]*underwriting.Guideline, bool) {
	n.metrics.IncrementCacheLookup("miss")
	return nil, false
}

func (noopCache) SetActive(context.Context, uuid.UUID, []*underwriting.Guideline) {}

func (noopCache) Invalidate(context.Context, uuid.UUID) {}
