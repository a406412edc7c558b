package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

// PostgresPositionRepository implements the PositionRepository interface on PostgreSQL
type PostgresPositionRepository struct {
	db *pgxpool.Pool
}

// NewPostgresPositionRepository creates a new PostgresPositionRepository
func NewPostgresPositionRepository(db *pgxpool.Pool) *PostgresPositionRepository {
	return &PostgresPositionRepository{db: db}
}

const positionSelectCols = `id, asset_class, asset_symbol, position_type, entry_price,
	quantity, leverage, entry_time, exit_price, exit_time, status, notes,
	created_at, updated_at`

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p         domain.Position
		exitPrice decimal.NullDecimal
	)
	err := row.Scan(
		&p.ID,
		&p.AssetClass,
		&p.AssetSymbol,
		&p.PositionType,
		&p.EntryPrice,
		&p.Quantity,
		&p.Leverage,
		&p.EntryTime,
		&exitPrice,
		&p.ExitTime,
		&p.Status,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if exitPrice.Valid {
		v := exitPrice.Decimal
		p.ExitPrice = &v
	}
	if p.ExitTime != nil {
		v := p.ExitTime.UTC()
		p.ExitTime = &v
	}
	p.EntryTime = p.EntryTime.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Create inserts a new OPEN position
func (r *PostgresPositionRepository) Create(ctx context.Context, spec domain.PositionSpec) (*domain.Position, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate position ID: %w", err)
	}
	position := domain.NewPosition(id, spec, time.Now())

	// Return what the database stored, not what was sent
	query := `
		INSERT INTO positions (
			id, asset_class, asset_symbol, position_type, entry_price,
			quantity, leverage, entry_time, status, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12
		)
		RETURNING ` + positionSelectCols

	stored, err := scanPosition(r.db.QueryRow(ctx, query,
		position.ID,
		string(position.AssetClass),
		position.AssetSymbol,
		string(position.PositionType),
		position.EntryPrice.String(),
		position.Quantity.String(),
		position.Leverage.String(),
		position.EntryTime,
		string(position.Status),
		position.Notes,
		position.CreatedAt,
		position.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to save position: %w", err)
	}

	return stored, nil
}

// GetByID retrieves a position by ID
func (r *PostgresPositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE id = $1`

	position, err := scanPosition(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position by ID: %w", err)
	}

	return position, nil
}

// List retrieves positions in insertion order
func (r *PostgresPositionRepository) List(ctx context.Context, filter domain.PositionFilter) ([]*domain.Position, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AssetSymbol != "" {
		args = append(args, filter.AssetSymbol)
		where = append(where, fmt.Sprintf("asset_symbol = $%d", len(args)))
	}

	query := `SELECT ` + positionSelectCols + ` FROM positions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// MarkClosed closes an OPEN position with a single conditional UPDATE.
// Only the statement that still sees status OPEN can match the row.
func (r *PostgresPositionRepository) MarkClosed(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, exitTime time.Time, notes *string) (*domain.Position, error) {
	if !exitPrice.IsPositive() {
		return nil, &domain.ValidationError{Field: "exit_price", Reason: "must be greater than 0"}
	}

	query := `
		UPDATE positions
		SET status = 'CLOSED',
		    exit_price = $2::numeric,
		    exit_time = $3,
		    notes = COALESCE($4, notes),
		    updated_at = $3
		WHERE id = $1 AND status = 'OPEN'
		RETURNING ` + positionSelectCols

	position, err := scanPosition(r.db.QueryRow(ctx, query, id, exitPrice.String(), domain.StoredTime(exitTime), notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrClosed(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close position: %w", err)
	}

	return position, nil
}

// missOrClosed explains why a conditional update matched no row
func (r *PostgresPositionRepository) missOrClosed(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM positions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check position status: %w", err)
	}
	return domain.ErrAlreadyClosed
}

// Delete removes a position at any status
func (r *PostgresPositionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateNotes replaces the notes of an OPEN position
func (r *PostgresPositionRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Position, error) {
	query := `
		UPDATE positions
		SET notes = $2, updated_at = $3
		WHERE id = $1 AND status = 'OPEN'
		RETURNING ` + positionSelectCols

	position, err := scanPosition(r.db.QueryRow(ctx, query, id, notes, domain.StoredTime(time.Now())))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOrClosed(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update position notes: %w", err)
	}

	return position, nil
}

// Ping checks the pool can reach the database
func (r *PostgresPositionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

var _ domain.PositionRepository = (*PostgresPositionRepository)(nil)
