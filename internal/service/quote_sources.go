package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

// SymbolRouter is implemented by quote sources that only cover some symbols
type SymbolRouter interface {
	Supports(symbol string) bool
}

// StaticQuoteSource serves prices from a fixed table
type StaticQuoteSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticQuoteSource copies prices into a new table
func NewStaticQuoteSource(prices map[string]decimal.Decimal) *StaticQuoteSource {
	table := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		table[sym] = p
	}
	return &StaticQuoteSource{prices: table}
}

// ParseStaticQuotes parses "SYM=price,SYM2=price" pairs. Symbols are upper-cased.
func ParseStaticQuotes(raw string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(sym) == "" {
			return nil, fmt.Errorf("invalid static quote %q: want SYMBOL=PRICE", pair)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid static quote %q: %w", pair, err)
		}
		prices[strings.ToUpper(strings.TrimSpace(sym))] = price
	}
	return prices, nil
}

// SetPrice replaces the price of one symbol
func (s *StaticQuoteSource) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// Remove drops a symbol so its lookups fail
func (s *StaticQuoteSource) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
}

// Supports reports whether the table has a price for symbol
func (s *StaticQuoteSource) Supports(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.prices[symbol]
	return ok
}

// GetLatestPrice returns the table price
func (s *StaticQuoteSource) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no static price for %s", domain.ErrQuoteUnavailable, symbol)
	}
	return price, nil
}

// RoutingQuoteSource sends each symbol to the first source that claims it.
// Sources that do not implement SymbolRouter claim every symbol.
type RoutingQuoteSource struct {
	sources []domain.QuoteSource
}

// NewRoutingQuoteSource creates a router over sources, tried in order
func NewRoutingQuoteSource(sources ...domain.QuoteSource) *RoutingQuoteSource {
	return &RoutingQuoteSource{sources: sources}
}

// GetLatestPrice delegates to the first matching source
func (r *RoutingQuoteSource) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	for _, src := range r.sources {
		if router, ok := src.(SymbolRouter); ok && !router.Supports(symbol) {
			continue
		}
		return src.GetLatestPrice(ctx, symbol)
	}
	return decimal.Zero, fmt.Errorf("%w: no quote source for %s", domain.ErrQuoteUnavailable, symbol)
}

var (
	_ domain.QuoteSource = (*StaticQuoteSource)(nil)
	_ domain.QuoteSource = (*RoutingQuoteSource)(nil)
)
