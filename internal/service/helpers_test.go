package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openPosition(symbol string, side domain.PositionType, entry, qty, lev string) *domain.Position {
	return domain.NewPosition(uuid.New(), domain.PositionSpec{
		AssetClass:   domain.AssetClassCrypto,
		AssetSymbol:  symbol,
		PositionType: side,
		EntryPrice:   dec(entry),
		Quantity:     dec(qty),
		Leverage:     dec(lev),
	}, time.Now().UTC())
}

func closedPosition(symbol string, side domain.PositionType, entry, qty, lev, exit string) *domain.Position {
	p := openPosition(symbol, side, entry, qty, lev)
	if err := p.Close(dec(exit), time.Now().UTC(), nil); err != nil {
		panic(err)
	}
	return p
}

// countingSource records how often each symbol was requested
type countingSource struct {
	mu     sync.Mutex
	calls  map[string]int
	total  atomic.Int64
	prices map[string]decimal.Decimal
	delay  time.Duration
}

func newCountingSource(prices map[string]string) *countingSource {
	s := &countingSource{calls: map[string]int{}, prices: map[string]decimal.Decimal{}}
	for sym, p := range prices {
		s.prices[sym] = dec(p)
	}
	return s
}

func (s *countingSource) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	s.calls[symbol]++
	s.mu.Unlock()
	s.total.Add(1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}

	p, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, domain.ErrQuoteUnavailable
	}
	return p, nil
}

func (s *countingSource) callsFor(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

// memoryPriceCache is an in-process domain.PriceCache
type memoryPriceCache struct {
	mu      sync.Mutex
	entries map[string]cachedPrice
	getErr  error
	setErr  error
}

type cachedPrice struct {
	price decimal.Decimal
	ts    time.Time
}

func newMemoryPriceCache() *memoryPriceCache {
	return &memoryPriceCache{entries: map[string]cachedPrice{}}
}

func (c *memoryPriceCache) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return decimal.Zero, time.Time{}, c.getErr
	}
	e, ok := c.entries[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrCacheMiss
	}
	return e.price, e.ts, nil
}

func (c *memoryPriceCache) SetPrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[symbol] = cachedPrice{price: price, ts: ts}
	return nil
}
