package oracle

import (
	"fmt"
	"strings"

	"exchange-ledger-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New builds the oracle described by cfg. The returned close function releases the
// Redis client when a cache is configured.
func New(cfg models.OracleConfig, catalog models.CurrencyCatalog, stable string) (PriceOracle, func() error, error) {
	noop := func() error { return nil }
	static := NewStatic(catalog, stable)

	var primary PriceOracle
	switch strings.ToLower(cfg.Provider) {
	case "", "static":
		zap.L().Info("Using static price oracle")
		return static, noop, nil
	case "binance":
		primary = NewBinance(cfg.BaseURL, cfg.Timeout, WithRateLimit(cfg.RequestsPerSec, cfg.Burst))
	default:
		return nil, noop, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}

	closeFn := noop
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		primary = NewCached(primary, client, cfg.CacheTTL)
		closeFn = client.Close
	}
	if cfg.FallbackStatic {
		primary = Chain{primary, static}
	}

	zap.L().Info("Using price oracle",
		zap.String("provider", cfg.Provider),
		zap.Bool("redis_cache", cfg.RedisAddr != ""),
		zap.Bool("static_fallback", cfg.FallbackStatic))
	return primary, closeFn, nil
}
