package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lineage/internal/hierarchy/models"
	id "lineage/pkg/domain"
)

// agentKeyPrefix namespaces cached agent records.
const agentKeyPrefix = "agent:addr:"

// Store is the slice of the agent store the cache decorates.
type Store interface {
	Create(ctx context.Context, agent *models.AgentAccount) error
	FindByAddress(ctx context.Context, address id.Address) (*models.AgentAccount, error)
	FindByAddressForUpdate(ctx context.Context, address id.Address) (*models.AgentAccount, error)
	Update(ctx context.Context, agent *models.AgentAccount) error
	ListChildren(ctx context.Context, parent id.Address) ([]*models.AgentAccount, error)
}

// CacheMeter counts cache outcomes. Implemented by the hierarchy metrics.
type CacheMeter interface {
	CacheHit()
	CacheMiss()
}

// Cache is a read-through decorator over an agent store. Only the plain
// read path is served from redis; locked reads and writes always reach
// the inner store, so transactional correctness never depends on cache
// freshness. Cached reads can lag a committed write by at most the TTL.
// Redis failures degrade to the inner store instead of failing the read.
type Cache struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	meter  CacheMeter
}

// CacheOption configures the decorator.
type CacheOption func(*Cache)

// WithCacheLogger sets the logger for degraded-path warnings.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// WithCacheMeter wires hit/miss counters.
func WithCacheMeter(meter CacheMeter) CacheOption {
	return func(c *Cache) { c.meter = meter }
}

// NewCache decorates inner with a redis read-through cache.
func NewCache(inner Store, client *redis.Client, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{inner: inner, client: client, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Create(ctx context.Context, agent *models.AgentAccount) error {
	if err := c.inner.Create(ctx, agent); err != nil {
		return err
	}
	c.invalidate(ctx, agent.Address)
	return nil
}

func (c *Cache) FindByAddress(ctx context.Context, address id.Address) (*models.AgentAccount, error) {
	key := agentKeyPrefix + string(address)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var agent models.AgentAccount
		if err := json.Unmarshal(cached, &agent); err == nil {
			c.hit()
			return &agent, nil
		}
		// Undecodable entry: drop it and fall through to the store.
		c.invalidate(ctx, address)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "agent cache read failed", "error", err)
	}
	c.miss()

	agent, err := c.inner.FindByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, agent)
	return agent, nil
}

// FindByAddressForUpdate always reads the inner store: callers hold row
// locks for the rest of the transaction and must see current state.
func (c *Cache) FindByAddressForUpdate(ctx context.Context, address id.Address) (*models.AgentAccount, error) {
	return c.inner.FindByAddressForUpdate(ctx, address)
}

func (c *Cache) Update(ctx context.Context, agent *models.AgentAccount) error {
	if err := c.inner.Update(ctx, agent); err != nil {
		return err
	}
	c.invalidate(ctx, agent.Address)
	return nil
}

// ListChildren is not cached: child sets change on every spawn and the
// endpoint is rare compared to single-agent reads.
func (c *Cache) ListChildren(ctx context.Context, parent id.Address) ([]*models.AgentAccount, error) {
	return c.inner.ListChildren(ctx, parent)
}

func (c *Cache) fill(ctx context.Context, key string, agent *models.AgentAccount) {
	payload, err := json.Marshal(agent)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "agent cache fill failed", "error", err)
	}
}

func (c *Cache) invalidate(ctx context.Context, address id.Address) {
	if err := c.client.Del(ctx, agentKeyPrefix+string(address)).Err(); err != nil {
		c.logger.WarnContext(ctx, "agent cache invalidation failed", "error", err, "agent", string(address))
	}
}

func (c *Cache) hit() {
	if c.meter != nil {
		c.meter.CacheHit()
	}
}

func (c *Cache) miss() {
	if c.meter != nil {
		c.meter.CacheMiss()
	}
}
