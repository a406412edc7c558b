package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenPositionInput is the open-position command. A nil Leverage means 1x.
type OpenPositionInput struct {
	AssetClass   string
	AssetSymbol  string
	PositionType string
	EntryPrice   decimal.Decimal
	Quantity     decimal.Decimal
	Leverage     *decimal.Decimal
	Notes        *string
}

// LedgerService is the command/query API exposed to the dashboard
type LedgerService interface {
	OpenPosition(ctx context.Context, in OpenPositionInput) (*Position, error)
	ClosePosition(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, notes *string) (*Position, error)
	DeletePosition(ctx context.Context, id uuid.UUID) error
	GetPosition(ctx context.Context, id uuid.UUID) (*Position, error)
	ListPositions(ctx context.Context, filter PositionFilter) ([]*Position, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Position, error)
	ListOpenPositionsWithPnL(ctx context.Context) ([]*PositionWithPnL, error)
	GetPortfolioStats(ctx context.Context) (*PortfolioStats, error)
}
