package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetClass tags the market a position belongs to. The ledger only validates it.
type AssetClass string

const (
	AssetClassNasdaq    AssetClass = "NASDAQ"
	AssetClassCrypto    AssetClass = "CRYPTO"
	AssetClassGold      AssetClass = "GOLD"
	AssetClassSilver    AssetClass = "SILVER"
	AssetClassPalladium AssetClass = "PALLADIUM"
)

// AssetClasses lists every supported asset class
var AssetClasses = []AssetClass{
	AssetClassNasdaq,
	AssetClassCrypto,
	AssetClassGold,
	AssetClassSilver,
	AssetClassPalladium,
}

// Valid reports whether c is a known asset class
func (c AssetClass) Valid() bool {
	for _, known := range AssetClasses {
		if c == known {
			return true
		}
	}
	return false
}

// ParseAssetClass normalizes user input ("crypto", " Gold ") into an AssetClass
func ParseAssetClass(s string) (AssetClass, error) {
	c := AssetClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", invalid("asset_class", "is not a supported asset class")
	}
	return c, nil
}

// PositionType is the trade direction
type PositionType string

// PositionType constants
const (
	SideLong  PositionType = "LONG"
	SideShort PositionType = "SHORT"
)

// ParsePositionType normalizes user input into a PositionType
func ParsePositionType(s string) (PositionType, error) {
	t := PositionType(strings.ToUpper(strings.TrimSpace(s)))
	if t != SideLong && t != SideShort {
		return "", invalid("position_type", "must be LONG or SHORT")
	}
	return t, nil
}

// PositionStatus is the lifecycle state of a position
type PositionStatus string

// PositionStatus constants
const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// ParsePositionStatus normalizes a status filter value
func ParsePositionStatus(s string) (PositionStatus, error) {
	st := PositionStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st != StatusOpen && st != StatusClosed {
		return "", invalid("status", "must be OPEN or CLOSED")
	}
	return st, nil
}

// StoredTime normalizes t to the UTC microsecond resolution every store can hold
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// MaxLeverage caps the simulated margin multiplier
var MaxLeverage = decimal.NewFromInt(100)

// Position represents a paper trading position
type Position struct {
	ID           uuid.UUID        `json:"id"`
	AssetClass   AssetClass       `json:"asset_class"`
	AssetSymbol  string           `json:"asset_symbol"`
	PositionType PositionType     `json:"position_type"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Leverage     decimal.Decimal  `json:"leverage"`
	EntryTime    time.Time        `json:"entry_time"`
	ExitPrice    *decimal.Decimal `json:"exit_price,omitempty"`
	ExitTime     *time.Time       `json:"exit_time,omitempty"`
	Status       PositionStatus   `json:"status"`
	Notes        *string          `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// PositionSpec holds the caller-supplied terms of a new position
type PositionSpec struct {
	AssetClass   AssetClass
	AssetSymbol  string
	PositionType PositionType
	EntryPrice   decimal.Decimal
	Quantity     decimal.Decimal
	Leverage     decimal.Decimal
	Notes        *string
}

// Validate checks the entry terms. Every failure matches ErrValidation.
func (s *PositionSpec) Validate() error {
	if !s.AssetClass.Valid() {
		return invalid("asset_class", "is not a supported asset class")
	}
	if strings.TrimSpace(s.AssetSymbol) == "" {
		return invalid("asset_symbol", "is required")
	}
	if s.PositionType != SideLong && s.PositionType != SideShort {
		return invalid("position_type", "must be LONG or SHORT")
	}
	if !s.EntryPrice.IsPositive() {
		return invalid("entry_price", "must be greater than 0")
	}
	if !s.Quantity.IsPositive() {
		return invalid("quantity", "must be greater than 0")
	}
	if s.Leverage.LessThan(decimal.NewFromInt(1)) {
		return invalid("leverage", "must be at least 1")
	}
	if s.Leverage.GreaterThan(MaxLeverage) {
		return invalid("leverage", "must not exceed "+MaxLeverage.String())
	}
	return nil
}

// NewPosition builds an OPEN position from a validated spec
func NewPosition(id uuid.UUID, s PositionSpec, now time.Time) *Position {
	now = StoredTime(now)
	var notes *string
	if s.Notes != nil {
		n := *s.Notes
		notes = &n
	}
	return &Position{
		ID:           id,
		AssetClass:   s.AssetClass,
		AssetSymbol:  strings.TrimSpace(s.AssetSymbol),
		PositionType: s.PositionType,
		EntryPrice:   s.EntryPrice,
		Quantity:     s.Quantity,
		Leverage:     s.Leverage,
		EntryTime:    now,
		Status:       StatusOpen,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsLong checks if the position is a LONG position
func (p *Position) IsLong() bool {
	return p.PositionType == SideLong
}

// IsOpen checks if the position can still be closed or annotated
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// CostBasis is entry price times quantity, the unleveraged capital committed
func (p *Position) CostBasis() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

// Close flips the position to CLOSED. The caller must hold whatever lock guards p.
func (p *Position) Close(exitPrice decimal.Decimal, exitTime time.Time, notes *string) error {
	if !p.IsOpen() {
		return ErrAlreadyClosed
	}
	if !exitPrice.IsPositive() {
		return invalid("exit_price", "must be greater than 0")
	}
	price := exitPrice
	at := StoredTime(exitTime)
	p.ExitPrice = &price
	p.ExitTime = &at
	p.Status = StatusClosed
	if notes != nil {
		n := *notes
		p.Notes = &n
	}
	p.UpdatedAt = at
	return nil
}

// Validate checks the structural invariants of a stored position
func (p *Position) Validate() error {
	spec := PositionSpec{
		AssetClass:   p.AssetClass,
		AssetSymbol:  p.AssetSymbol,
		PositionType: p.PositionType,
		EntryPrice:   p.EntryPrice,
		Quantity:     p.Quantity,
		Leverage:     p.Leverage,
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	switch p.Status {
	case StatusOpen:
		if p.ExitPrice != nil || p.ExitTime != nil {
			return invalid("exit_price", "must be unset while OPEN")
		}
	case StatusClosed:
		if p.ExitPrice == nil || p.ExitTime == nil {
			return invalid("exit_price", "must be set once CLOSED")
		}
	default:
		return invalid("status", "must be OPEN or CLOSED")
	}
	return nil
}

// Clone returns a deep copy so callers never alias stored state
func (p *Position) Clone() *Position {
	c := *p
	if p.ExitPrice != nil {
		v := *p.ExitPrice
		c.ExitPrice = &v
	}
	if p.ExitTime != nil {
		v := *p.ExitTime
		c.ExitTime = &v
	}
	if p.Notes != nil {
		v := *p.Notes
		c.Notes = &v
	}
	return &c
}
