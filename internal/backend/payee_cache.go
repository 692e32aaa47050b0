package backend

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourorg/checkout-orchestrator/internal/logger"
)

const defaultPayeeTTL = 10 * time.Minute

// PayeeSource resolves payee display attributes.
type PayeeSource interface {
	PayeeName(ctx stdcontext.Context, id string) (string, error)
	PayeeCountry(ctx stdcontext.Context, id string) (string, error)
}

// PayeeCache is a read-through redis cache in front of a PayeeSource. Payee
// attributes are display-only, so cache failures fall through to the source.
type PayeeCache struct {
	rdb    *redis.Client
	source PayeeSource
	scope  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewPayeeCache creates a cache. scope separates deployments sharing one redis.
func NewPayeeCache(rdb *redis.Client, source PayeeSource, scope string, ttl time.Duration, l *zap.Logger) *PayeeCache {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	if source == nil {
		panic("payee source cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultPayeeTTL
	}
	return &PayeeCache{rdb: rdb, source: source, scope: scope, ttl: ttl, logger: logger.OrNop(l)}
}

// PayeeName returns the cached payee name, loading it on a miss.
func (c *PayeeCache) PayeeName(ctx stdcontext.Context, id string) (string, error) {
	return c.lookup(ctx, id, "name", c.source.PayeeName)
}

// PayeeCountry returns the cached payee country, loading it on a miss.
func (c *PayeeCache) PayeeCountry(ctx stdcontext.Context, id string) (string, error) {
	return c.lookup(ctx, id, "country", c.source.PayeeCountry)
}

func (c *PayeeCache) key(id, field string) string {
	return fmt.Sprintf("checkout:payee:%s:%s:%s", c.scope, id, field)
}

func (c *PayeeCache) lookup(ctx stdcontext.Context, id, field string, load func(stdcontext.Context, string) (string, error)) (string, error) {
	key := c.key(id, field)
	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		payeeCacheLookups.WithLabelValues("hit").Inc()
		return val, nil
	case errors.Is(err, redis.Nil):
		payeeCacheLookups.WithLabelValues("miss").Inc()
	default:
		payeeCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("payee cache read failed", zap.String("key", key), zap.Error(err))
	}

	val, err = load(ctx, id)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.logger.Warn("payee cache write failed", zap.String("key", key), zap.Error(err))
	}
	return val, nil
}
