package oracle

import (
	"context"
	"errors"
	"time"

	"exchange-ledger-go/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "ledger:price:"

// Cached keeps prices from next in Redis for ttl. Redis failures are logged and the
// lookup falls through to next.
type Cached struct {
	next   PriceOracle
	client redis.UniversalClient
	ttl    time.Duration
}

func NewCached(next PriceOracle, client redis.UniversalClient, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Cached{next: next, client: client, ttl: ttl}
}

func (c *Cached) GetCurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	key := cacheKeyPrefix + Symbol(pair)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if price, perr := decimal.NewFromString(raw); perr == nil && price.IsPositive() {
			metrics.OracleRequests.WithLabelValues("redis", "hit").Inc()
			return price, nil
		}
		zap.L().Warn("Discarding malformed cached price", zap.String("key", key), zap.String("value", raw))
	case errors.Is(err, redis.Nil):
		metrics.OracleRequests.WithLabelValues("redis", "miss").Inc()
	default:
		metrics.OracleRequests.WithLabelValues("redis", "error").Inc()
		zap.L().Warn("Price cache unavailable", zap.String("key", key), zap.Error(err))
	}

	price, err := c.next.GetCurrentPrice(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.client.Set(ctx, key, price.String(), c.ttl).Err(); err != nil {
		zap.L().Warn("Failed to cache price", zap.String("key", key), zap.Error(err))
	}
	return price, nil
}
