package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrCacheMiss is returned by a PriceCache that holds no entry for a symbol
var ErrCacheMiss = errors.New("cache miss")

// PriceCache stores the last observed quote per symbol with its observation time
type PriceCache interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error)
	SetPrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error
}
