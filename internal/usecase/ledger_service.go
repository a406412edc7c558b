package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paperledger/internal/domain"
	"paperledger/internal/service"
)

// LedgerService orchestrates the paper trading ledger: validation, store
// mutations and live P&L reads. It holds no state besides its collaborators.
type LedgerService struct {
	repo   domain.PositionRepository
	quotes service.QuoteLookup
	logger *zap.Logger
	now    func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo domain.PositionRepository, quotes service.QuoteLookup, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		repo:   repo,
		quotes: quotes,
		logger: logger,
		now:    time.Now,
	}
}

// OpenPosition validates the command and persists a new OPEN position
func (s *LedgerService) OpenPosition(ctx context.Context, in domain.OpenPositionInput) (*domain.Position, error) {
	assetClass, err := domain.ParseAssetClass(in.AssetClass)
	if err != nil {
		return nil, err
	}
	side, err := domain.ParsePositionType(in.PositionType)
	if err != nil {
		return nil, err
	}

	leverage := decimal.NewFromInt(1)
	if in.Leverage != nil {
		leverage = *in.Leverage
	}

	spec := domain.PositionSpec{
		AssetClass:   assetClass,
		AssetSymbol:  strings.ToUpper(strings.TrimSpace(in.AssetSymbol)),
		PositionType: side,
		EntryPrice:   in.EntryPrice,
		Quantity:     in.Quantity,
		Leverage:     leverage,
		Notes:        in.Notes,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	position, err := s.repo.Create(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to open position: %w", err)
	}

	s.logger.Info("position opened",
		zap.String("id", position.ID.String()),
		zap.String("symbol", position.AssetSymbol),
		zap.String("side", string(position.PositionType)),
		zap.String("entry_price", position.EntryPrice.String()),
		zap.String("quantity", position.Quantity.String()),
		zap.String("leverage", position.Leverage.String()),
	)
	return position, nil
}

// ClosePosition closes an OPEN position at exitPrice
func (s *LedgerService) ClosePosition(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, notes *string) (*domain.Position, error) {
	if !exitPrice.IsPositive() {
		return nil, &domain.ValidationError{Field: "exit_price", Reason: "must be greater than 0"}
	}

	position, err := s.repo.MarkClosed(ctx, id, exitPrice, s.now().UTC(), notes)
	if err != nil {
		return nil, fmt.Errorf("failed to close position %s: %w", id, err)
	}

	realized, err := position.RealizedPnL()
	if err == nil {
		s.logger.Info("position closed",
			zap.String("id", id.String()),
			zap.String("symbol", position.AssetSymbol),
			zap.String("exit_price", exitPrice.String()),
			zap.String("pnl_with_leverage", realized.PnLWithLeverage.String()),
		)
	}
	return position, nil
}

// DeletePosition removes a position at any status
func (s *LedgerService) DeletePosition(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete position %s: %w", id, err)
	}
	s.logger.Info("position deleted", zap.String("id", id.String()))
	return nil
}

// GetPosition retrieves a position by ID
func (s *LedgerService) GetPosition(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	position, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", id, err)
	}
	return position, nil
}

// ListPositions returns positions matching filter in insertion order
func (s *LedgerService) ListPositions(ctx context.Context, filter domain.PositionFilter) ([]*domain.Position, error) {
	filter.AssetSymbol = strings.ToUpper(strings.TrimSpace(filter.AssetSymbol))
	positions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

// UpdateNotes replaces the notes of an OPEN position
func (s *LedgerService) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Position, error) {
	position, err := s.repo.UpdateNotes(ctx, id, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to update notes of position %s: %w", id, err)
	}
	return position, nil
}

// ListOpenPositionsWithPnL snapshots OPEN positions, then prices them.
// A symbol whose quote fails degrades only its own positions.
func (s *LedgerService) ListOpenPositionsWithPnL(ctx context.Context) ([]*domain.PositionWithPnL, error) {
	positions, err := s.repo.List(ctx, domain.PositionFilter{Status: domain.StatusOpen})
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}

	priced := service.AttachLivePnL(ctx, positions, s.quotes)
	out := make([]*domain.PositionWithPnL, len(priced))
	for i := range priced {
		out[i] = &priced[i]
	}
	return out, nil
}

// GetPortfolioStats recomputes portfolio statistics from the current store contents
func (s *LedgerService) GetPortfolioStats(ctx context.Context) (*domain.PortfolioStats, error) {
	positions, err := s.repo.List(ctx, domain.PositionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	stats := service.Aggregate(ctx, positions, s.quotes)
	if len(stats.UnavailableSymbols) > 0 {
		s.logger.Warn("portfolio stats computed without live quotes",
			zap.Strings("symbols", stats.UnavailableSymbols))
	}
	return &stats, nil
}

var _ domain.LedgerService = (*LedgerService)(nil)
