package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paperledger/internal/domain"
)

// CachedQuoteSource is a read-through cache in front of an upstream QuoteSource.
// A cache failure never fails a lookup: it falls through to the upstream.
type CachedQuoteSource struct {
	cache    domain.PriceCache
	upstream domain.QuoteSource
	maxAge   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewCachedQuoteSource wraps upstream; entries older than maxAge are refetched
func NewCachedQuoteSource(cache domain.PriceCache, upstream domain.QuoteSource, maxAge time.Duration, logger *zap.Logger) *CachedQuoteSource {
	return &CachedQuoteSource{
		cache:    cache,
		upstream: upstream,
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger,
	}
}

// GetLatestPrice serves a fresh cached price or fetches and stores a new one
func (c *CachedQuoteSource) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, ts, err := c.cache.GetPrice(ctx, symbol)
	switch {
	case err == nil && c.now().Sub(ts) <= c.maxAge:
		return price, nil
	case err != nil && !errors.Is(err, domain.ErrCacheMiss):
		c.logger.Warn("price cache read failed", zap.String("symbol", symbol), zap.Error(err))
	}

	return c.Refresh(ctx, symbol)
}

// Refresh fetches from upstream and overwrites the cache entry
func (c *CachedQuoteSource) Refresh(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := c.upstream.GetLatestPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.cache.SetPrice(ctx, symbol, price, c.now()); err != nil {
		c.logger.Warn("price cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return price, nil
}

var _ domain.QuoteSource = (*CachedQuoteSource)(nil)
