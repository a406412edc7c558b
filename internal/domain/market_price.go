package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteSource supplies the latest tradable price for an asset symbol.
// Failures wrap ErrQuoteUnavailable.
type QuoteSource interface {
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// QuoteSourceFunc adapts a function to QuoteSource
type QuoteSourceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f QuoteSourceFunc) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}
