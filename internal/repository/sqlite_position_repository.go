package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"paperledger/internal/database"
	"paperledger/internal/domain"
)

// SQLitePositionRepository implements the PositionRepository interface on a sqlite file
type SQLitePositionRepository struct {
	db *sql.DB
}

// NewSQLitePositionRepository opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func NewSQLitePositionRepository(path string) (*SQLitePositionRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection: sqlite serializes writers anyway and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(database.SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLitePositionRepository{db: db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePosition(row rowScanner) (*domain.Position, error) {
	var (
		p         domain.Position
		id        string
		exitPrice decimal.NullDecimal
		exitTime  sql.NullTime
		notes     sql.NullString
	)
	err := row.Scan(
		&id,
		&p.AssetClass,
		&p.AssetSymbol,
		&p.PositionType,
		&p.EntryPrice,
		&p.Quantity,
		&p.Leverage,
		&p.EntryTime,
		&exitPrice,
		&exitTime,
		&p.Status,
		&notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid stored position ID %q: %w", id, err)
	}
	if exitPrice.Valid {
		v := exitPrice.Decimal
		p.ExitPrice = &v
	}
	if exitTime.Valid {
		v := exitTime.Time.UTC()
		p.ExitTime = &v
	}
	if notes.Valid {
		v := notes.String
		p.Notes = &v
	}
	p.EntryTime = p.EntryTime.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts a new OPEN position
func (r *SQLitePositionRepository) Create(ctx context.Context, spec domain.PositionSpec) (*domain.Position, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate position ID: %w", err)
	}
	position := domain.NewPosition(id, spec, time.Now().UTC())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO positions
		(id, asset_class, asset_symbol, position_type, entry_price, quantity, leverage,
		 entry_time, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		position.ID.String(),
		string(position.AssetClass),
		position.AssetSymbol,
		string(position.PositionType),
		position.EntryPrice.String(),
		position.Quantity.String(),
		position.Leverage.String(),
		position.EntryTime,
		string(position.Status),
		nullString(position.Notes),
		position.CreatedAt,
		position.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save position: %w", err)
	}

	return position, nil
}

// GetByID retrieves a position by ID
func (r *SQLitePositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+positionSelectCols+` FROM positions WHERE id = ?`, id.String())
	position, err := scanSQLitePosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position by ID: %w", err)
	}
	return position, nil
}

// List retrieves positions in insertion order
func (r *SQLitePositionRepository) List(ctx context.Context, filter domain.PositionFilter) ([]*domain.Position, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssetSymbol != "" {
		where = append(where, "asset_symbol = ?")
		args = append(args, filter.AssetSymbol)
	}

	query := `SELECT ` + positionSelectCols + ` FROM positions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		position, err := scanSQLitePosition(rows)
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

// MarkClosed closes an OPEN position. The conditional UPDATE and the read-back
// share one transaction so a concurrent delete cannot slip in between.
func (r *SQLitePositionRepository) MarkClosed(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, exitTime time.Time, notes *string) (*domain.Position, error) {
	if !exitPrice.IsPositive() {
		return nil, &domain.ValidationError{Field: "exit_price", Reason: "must be greater than 0"}
	}

	at := domain.StoredTime(exitTime)
	return r.updateOpen(ctx, id, `
		UPDATE positions
		SET status = 'CLOSED', exit_price = ?, exit_time = ?, notes = COALESCE(?, notes), updated_at = ?
		WHERE id = ? AND status = 'OPEN'`,
		exitPrice.String(), at, nullString(notes), at, id.String(),
	)
}

// updateOpen runs an UPDATE guarded by status = 'OPEN' and returns the updated row
func (r *SQLitePositionRepository) updateOpen(ctx context.Context, id uuid.UUID, query string, args ...any) (*domain.Position, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update position: %w", err)
	}

	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM positions WHERE id = ?`, id.String()).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check position status: %w", err)
		}
		return nil, domain.ErrAlreadyClosed
	}

	row := tx.QueryRowContext(ctx, `SELECT `+positionSelectCols+` FROM positions WHERE id = ?`, id.String())
	position, err := scanSQLitePosition(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read updated position: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit position update: %w", err)
	}
	return position, nil
}

// Delete removes a position at any status
func (r *SQLitePositionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateNotes replaces the notes of an OPEN position
func (r *SQLitePositionRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Position, error) {
	return r.updateOpen(ctx, id, `
		UPDATE positions
		SET notes = ?, updated_at = ?
		WHERE id = ? AND status = 'OPEN'`,
		notes, domain.StoredTime(time.Now()), id.String(),
	)
}

// Ping checks the database handle
func (r *SQLitePositionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database handle
func (r *SQLitePositionRepository) Close() error {
	return r.db.Close()
}

var _ domain.PositionRepository = (*SQLitePositionRepository)(nil)
