package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paperledger/internal/domain"
)

// QuoteResult is the outcome of one symbol lookup
type QuoteResult struct {
	Price decimal.Decimal
	Err   error
}

// QuoteLookup resolves a set of symbols to quotes, one call per distinct symbol
type QuoteLookup interface {
	Lookup(ctx context.Context, symbols []string) map[string]QuoteResult
}

// QuoteBatcher fans distinct symbols out to a QuoteSource with bounded concurrency.
// A failed symbol is recorded in its result and never cancels the others.
type QuoteBatcher struct {
	source      domain.QuoteSource
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewQuoteBatcher creates a QuoteBatcher. timeout bounds each lookup; zero disables it.
func NewQuoteBatcher(source domain.QuoteSource, concurrency int, timeout time.Duration, logger *zap.Logger) *QuoteBatcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &QuoteBatcher{
		source:      source,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

// Lookup fetches every distinct symbol once
func (b *QuoteBatcher) Lookup(ctx context.Context, symbols []string) map[string]QuoteResult {
	distinct := uniqueSymbols(symbols)
	results := make(map[string]QuoteResult, len(distinct))
	if len(distinct) == 0 {
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, symbol := range distinct {
		g.Go(func() error {
			res := b.fetch(gctx, symbol)
			if res.Err != nil {
				b.logger.Warn("quote unavailable", zap.String("symbol", symbol), zap.Error(res.Err))
			}
			mu.Lock()
			results[symbol] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *QuoteBatcher) fetch(ctx context.Context, symbol string) QuoteResult {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	price, err := b.source.GetLatestPrice(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrQuoteUnavailable) && !errors.Is(err, domain.ErrInvalidQuote) {
			err = fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
		}
		return QuoteResult{Err: err}
	}
	if !price.IsPositive() {
		return QuoteResult{Err: fmt.Errorf("%w: %s quoted at %s", domain.ErrInvalidQuote, symbol, price)}
	}
	return QuoteResult{Price: price}
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// OpenSymbols lists the distinct symbols of OPEN positions in first-seen order
func OpenSymbols(positions []*domain.Position) []string {
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen() {
			symbols = append(symbols, p.AssetSymbol)
		}
	}
	return uniqueSymbols(symbols)
}

var _ QuoteLookup = (*QuoteBatcher)(nil)
