package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionFilter narrows List results. Zero values match everything.
type PositionFilter struct {
	Status      PositionStatus
	AssetSymbol string
}

// Matches reports whether p passes the filter
func (f PositionFilter) Matches(p *Position) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.AssetSymbol != "" && p.AssetSymbol != f.AssetSymbol {
		return false
	}
	return true
}

// PositionRepository owns position records and their lifecycle transitions.
// Every returned *Position is a copy owned by the caller.
type PositionRepository interface {
	// Create validates the spec, assigns an ID and persists an OPEN position
	Create(ctx context.Context, spec PositionSpec) (*Position, error)

	// GetByID retrieves a position by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)

	// List returns matching positions in insertion order
	List(ctx context.Context, filter PositionFilter) ([]*Position, error)

	// MarkClosed atomically sets the exit fields and flips status to CLOSED.
	// Concurrent attempts on one ID: exactly one succeeds, the rest get ErrAlreadyClosed.
	MarkClosed(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, exitTime time.Time, notes *string) (*Position, error)

	// Delete removes a position at any status
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateNotes replaces the notes of an OPEN position
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Position, error)

	// Ping checks the backing storage is reachable
	Ping(ctx context.Context) error
}
