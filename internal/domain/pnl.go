package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PnL holds the profit/loss figures of one position against a reference price
type PnL struct {
	PnL                    decimal.Decimal `json:"pnl"`
	PnLPercent             decimal.Decimal `json:"pnl_percent"`
	PnLWithLeverage        decimal.Decimal `json:"pnl_with_leverage"`
	PnLWithLeveragePercent decimal.Decimal `json:"pnl_with_leverage_percent"`
}

// Direction is +1 for LONG and -1 for SHORT
func (p *Position) Direction() decimal.Decimal {
	if p.IsLong() {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// CalculatePnL computes P&L against referencePrice.
// Formula:
// - raw_diff = direction * (reference - entry)
// - pnl = raw_diff * quantity, pnl_percent = raw_diff / entry * 100
// - leveraged figures multiply both by leverage
func (p *Position) CalculatePnL(referencePrice decimal.Decimal) (PnL, error) {
	if !referencePrice.IsPositive() {
		return PnL{}, ErrInvalidQuote
	}
	if !p.EntryPrice.IsPositive() {
		return PnL{}, invalid("entry_price", "must be greater than 0")
	}

	rawDiff := p.Direction().Mul(referencePrice.Sub(p.EntryPrice))
	pnl := rawDiff.Mul(p.Quantity)
	pnlPercent := rawDiff.Div(p.EntryPrice).Mul(hundred)

	return PnL{
		PnL:                    pnl,
		PnLPercent:             pnlPercent,
		PnLWithLeverage:        pnl.Mul(p.Leverage),
		PnLWithLeveragePercent: pnlPercent.Mul(p.Leverage),
	}, nil
}

// RealizedPnL computes P&L at the fixed exit price of a CLOSED position
func (p *Position) RealizedPnL() (PnL, error) {
	if p.IsOpen() || p.ExitPrice == nil {
		return PnL{}, ErrInvalidQuote
	}
	return p.CalculatePnL(*p.ExitPrice)
}

// PositionWithPnL is a position annotated with figures at its reference price.
// When the live quote could not be obtained the figures are nil and QuoteUnavailable is set.
type PositionWithPnL struct {
	*Position
	CurrentPrice     *decimal.Decimal `json:"current_price,omitempty"`
	Figures          *PnL             `json:"-"`
	QuoteUnavailable bool             `json:"quote_unavailable"`
	QuoteError       string           `json:"quote_error,omitempty"`
}
