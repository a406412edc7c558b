package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paperledger/internal/delivery/http/dto"
	"paperledger/internal/domain"
	"paperledger/internal/middleware"
)

const requestTimeout = 10 * time.Second

// PositionHandler handles paper trading ledger endpoints
type PositionHandler struct {
	ledger domain.LedgerService
	logger *zap.Logger
}

// NewPositionHandler creates a new PositionHandler
func NewPositionHandler(ledger domain.LedgerService, logger *zap.Logger) *PositionHandler {
	return &PositionHandler{
		ledger: ledger,
		logger: logger,
	}
}

// OpenPosition opens a new simulated position
// POST /api/trading/positions
func (h *PositionHandler) OpenPosition(c echo.Context) error {
	var req dto.OpenPositionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	position, err := h.ledger.OpenPosition(ctx, req.ToInput())
	if err != nil {
		return h.respondError(c, "Failed to open position", err)
	}

	return CreatedResponse(c, dto.NewPositionOutput(position))
}

// ListPositions lists positions, optionally filtered by status and symbol
// GET /api/trading/positions?status=OPEN&symbol=BTC_USD
func (h *PositionHandler) ListPositions(c echo.Context) error {
	var filter domain.PositionFilter
	if raw := c.QueryParam("status"); raw != "" {
		status, err := domain.ParsePositionStatus(raw)
		if err != nil {
			return h.respondError(c, "Invalid status filter", err)
		}
		filter.Status = status
	}
	filter.AssetSymbol = c.QueryParam("symbol")

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	positions, err := h.ledger.ListPositions(ctx, filter)
	if err != nil {
		return h.respondError(c, "Failed to list positions", err)
	}

	return SuccessResponse(c, dto.NewPositionOutputs(positions))
}

// GetPosition returns one position
// GET /api/trading/positions/:id
func (h *PositionHandler) GetPosition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid position ID")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	position, err := h.ledger.GetPosition(ctx, id)
	if err != nil {
		return h.respondError(c, "Failed to get position", err)
	}

	return SuccessResponse(c, dto.NewPositionOutput(position))
}

// UpdateNotes replaces the notes of an OPEN position
// PUT /api/trading/positions/:id
func (h *PositionHandler) UpdateNotes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid position ID")
	}

	var req dto.UpdateNotesRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	position, err := h.ledger.UpdateNotes(ctx, id, req.Notes)
	if err != nil {
		return h.respondError(c, "Failed to update position", err)
	}

	return SuccessResponse(c, dto.NewPositionOutput(position))
}

// ClosePosition closes an OPEN position at the given exit price
// POST /api/trading/positions/:id/close
func (h *PositionHandler) ClosePosition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid position ID")
	}

	var req dto.ClosePositionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	position, err := h.ledger.ClosePosition(ctx, id, req.ExitPrice, req.Notes)
	if err != nil {
		return h.respondError(c, "Failed to close position", err)
	}

	return SuccessMessageResponse(c, "Position closed", dto.NewPositionOutput(position))
}

// DeletePosition removes a position at any status
// DELETE /api/trading/positions/:id
func (h *PositionHandler) DeletePosition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid position ID")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.ledger.DeletePosition(ctx, id); err != nil {
		return h.respondError(c, "Failed to delete position", err)
	}

	return SuccessMessageResponse(c, "Position deleted", nil)
}

// ListOpenWithPnL lists OPEN positions with live P&L
// GET /api/trading/positions/open/with-pnl
func (h *PositionHandler) ListOpenWithPnL(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.ledger.ListOpenPositionsWithPnL(ctx)
	if err != nil {
		return h.respondError(c, "Failed to list open positions", err)
	}

	return SuccessResponse(c, dto.NewPositionWithPnLOutputs(items))
}

// GetPortfolioStats returns portfolio-wide statistics
// GET /api/trading/portfolio/stats
func (h *PositionHandler) GetPortfolioStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	stats, err := h.ledger.GetPortfolioStats(ctx)
	if err != nil {
		return h.respondError(c, "Failed to compute portfolio stats", err)
	}

	return SuccessResponse(c, stats)
}

// respondError maps ledger errors to HTTP status codes
func (h *PositionHandler) respondError(c echo.Context, message string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return ErrorResponse(c, http.StatusBadRequest, message, validationDetail(err))
	case errors.Is(err, domain.ErrNotFound):
		return NotFoundResponse(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyClosed):
		return ConflictResponse(c, err.Error())
	}

	subject, _ := middleware.GetSubject(c)
	h.logger.Error(message,
		zap.String("path", c.Path()),
		zap.String("subject", subject),
		zap.Error(err),
	)
	return InternalServerErrorResponse(c, message, err)
}

func validationDetail(err error) interface{} {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return map[string]string{
			"field":  verr.Field,
			"reason": verr.Reason,
		}
	}
	return err.Error()
}
