package domain

import "github.com/shopspring/decimal"

// PortfolioStats is a derived snapshot over every position in the store.
// It is recomputed on each query and never persisted.
type PortfolioStats struct {
	TotalPositions     int             `json:"total_positions"`
	OpenPositions      int             `json:"open_positions"`
	ClosedPositions    int             `json:"closed_positions"`
	TotalPnL           decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent    decimal.Decimal `json:"total_pnl_percent"`
	WinRate            decimal.Decimal `json:"win_rate"`
	LargestWin         decimal.Decimal `json:"largest_win"`
	LargestLoss        decimal.Decimal `json:"largest_loss"`
	AvgWin             decimal.Decimal `json:"avg_win"`
	AvgLoss            decimal.Decimal `json:"avg_loss"`
	UnavailableSymbols []string        `json:"unavailable_symbols"`
}
