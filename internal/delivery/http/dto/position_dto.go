package dto

import (
	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

// OpenPositionRequest represents the open position request payload.
// Decimals accept JSON numbers or strings.
type OpenPositionRequest struct {
	AssetClass   string           `json:"asset_class"`
	AssetSymbol  string           `json:"asset_symbol"`
	PositionType string           `json:"position_type"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Leverage     *decimal.Decimal `json:"leverage,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

// ToInput converts the request to the ledger command
func (r OpenPositionRequest) ToInput() domain.OpenPositionInput {
	return domain.OpenPositionInput{
		AssetClass:   r.AssetClass,
		AssetSymbol:  r.AssetSymbol,
		PositionType: r.PositionType,
		EntryPrice:   r.EntryPrice,
		Quantity:     r.Quantity,
		Leverage:     r.Leverage,
		Notes:        r.Notes,
	}
}

// ClosePositionRequest represents the close position request payload
type ClosePositionRequest struct {
	ExitPrice decimal.Decimal `json:"exit_price"`
	Notes     *string         `json:"notes,omitempty"`
}

// UpdateNotesRequest represents the update notes request payload
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// PositionOutput represents a position in API responses.
// CLOSED positions carry their realized P&L figures.
type PositionOutput struct {
	*domain.Position
	*domain.PnL
}

// NewPositionOutput builds the output for p
func NewPositionOutput(p *domain.Position) PositionOutput {
	out := PositionOutput{Position: p}
	if !p.IsOpen() {
		if realized, err := p.RealizedPnL(); err == nil {
			out.PnL = &realized
		}
	}
	return out
}

// NewPositionOutputs converts a list of positions
func NewPositionOutputs(positions []*domain.Position) []PositionOutput {
	out := make([]PositionOutput, 0, len(positions))
	for _, p := range positions {
		out = append(out, NewPositionOutput(p))
	}
	return out
}

// PositionWithPnLOutput is an OPEN position with live P&L figures.
// The figures and current_price are absent when the quote was unavailable.
type PositionWithPnLOutput struct {
	PositionOutput
	CurrentPrice     *decimal.Decimal `json:"current_price"`
	QuoteUnavailable bool             `json:"quote_unavailable"`
	QuoteError       string           `json:"quote_error,omitempty"`
}

// NewPositionWithPnLOutputs converts live P&L results
func NewPositionWithPnLOutputs(items []*domain.PositionWithPnL) []PositionWithPnLOutput {
	out := make([]PositionWithPnLOutput, 0, len(items))
	for _, item := range items {
		out = append(out, PositionWithPnLOutput{
			PositionOutput:   PositionOutput{Position: item.Position, PnL: item.Figures},
			CurrentPrice:     item.CurrentPrice,
			QuoteUnavailable: item.QuoteUnavailable,
			QuoteError:       item.QuoteError,
		})
	}
	return out
}
