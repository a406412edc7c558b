package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Aggregate rolls positions up into PortfolioStats.
// Quotes are resolved once per distinct OPEN symbol. An open position whose quote
// cannot be resolved still counts as open but contributes neither P&L nor cost basis.
func Aggregate(ctx context.Context, positions []*domain.Position, lookup QuoteLookup) domain.PortfolioStats {
	stats := domain.PortfolioStats{
		TotalPositions:     len(positions),
		TotalPnL:           decimal.Zero,
		TotalPnLPercent:    decimal.Zero,
		WinRate:            decimal.Zero,
		LargestWin:         decimal.Zero,
		LargestLoss:        decimal.Zero,
		AvgWin:             decimal.Zero,
		AvgLoss:            decimal.Zero,
		UnavailableSymbols: []string{},
	}
	if len(positions) == 0 {
		return stats
	}

	quotes := map[string]QuoteResult{}
	if symbols := OpenSymbols(positions); len(symbols) > 0 {
		quotes = lookup.Lookup(ctx, symbols)
	}

	costBasis := decimal.Zero
	sumWin, sumLoss := decimal.Zero, decimal.Zero
	wins, losses := 0, 0
	unavailable := map[string]struct{}{}

	for _, p := range positions {
		var (
			figures domain.PnL
			err     error
		)
		if p.IsOpen() {
			stats.OpenPositions++
			q, ok := quotes[p.AssetSymbol]
			if !ok || q.Err != nil {
				unavailable[p.AssetSymbol] = struct{}{}
				continue
			}
			figures, err = p.CalculatePnL(q.Price)
		} else {
			stats.ClosedPositions++
			figures, err = p.RealizedPnL()
		}
		if err != nil {
			if p.IsOpen() {
				unavailable[p.AssetSymbol] = struct{}{}
			}
			continue
		}

		pnl := figures.PnLWithLeverage
		stats.TotalPnL = stats.TotalPnL.Add(pnl)
		costBasis = costBasis.Add(p.CostBasis())

		if p.IsOpen() {
			continue
		}
		switch pnl.Sign() {
		case 1:
			if wins == 0 || pnl.GreaterThan(stats.LargestWin) {
				stats.LargestWin = pnl
			}
			sumWin = sumWin.Add(pnl)
			wins++
		case -1:
			if losses == 0 || pnl.LessThan(stats.LargestLoss) {
				stats.LargestLoss = pnl
			}
			sumLoss = sumLoss.Add(pnl)
			losses++
		}
	}

	if stats.ClosedPositions > 0 {
		stats.WinRate = decimal.NewFromInt(int64(wins)).Mul(hundred).Div(decimal.NewFromInt(int64(stats.ClosedPositions)))
	}
	if wins > 0 {
		stats.AvgWin = sumWin.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		stats.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(losses)))
	}
	if costBasis.IsPositive() {
		stats.TotalPnLPercent = stats.TotalPnL.Mul(hundred).Div(costBasis)
	}

	for sym := range unavailable {
		stats.UnavailableSymbols = append(stats.UnavailableSymbols, sym)
	}
	sort.Strings(stats.UnavailableSymbols)

	return stats
}

// AttachLivePnL annotates OPEN positions with figures at their live quote.
// Positions whose quote failed are returned with QuoteUnavailable set.
func AttachLivePnL(ctx context.Context, positions []*domain.Position, lookup QuoteLookup) []domain.PositionWithPnL {
	out := make([]domain.PositionWithPnL, 0, len(positions))
	if len(positions) == 0 {
		return out
	}

	quotes := lookup.Lookup(ctx, OpenSymbols(positions))
	for _, p := range positions {
		item := domain.PositionWithPnL{Position: p}

		q, ok := quotes[p.AssetSymbol]
		switch {
		case !ok:
			item.QuoteUnavailable = true
			item.QuoteError = domain.ErrQuoteUnavailable.Error()
		case q.Err != nil:
			item.QuoteUnavailable = true
			item.QuoteError = q.Err.Error()
		default:
			figures, err := p.CalculatePnL(q.Price)
			if err != nil {
				item.QuoteUnavailable = true
				item.QuoteError = err.Error()
				break
			}
			price := q.Price
			item.CurrentPrice = &price
			item.Figures = &figures
		}

		out = append(out, item)
	}
	return out
}
