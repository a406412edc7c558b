package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paperledger/internal/domain"
)

// positionEntry guards a single position. Close, delete and note updates on the
// same ID serialize on mu; different IDs never contend.
type positionEntry struct {
	mu       sync.Mutex
	position *domain.Position
	deleted  bool
}

// MemoryPositionRepository is a concurrency-safe in-process PositionRepository.
// The index lock only protects the map and the insertion order, never a position.
type MemoryPositionRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*positionEntry
	order   []*positionEntry

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// NewMemoryPositionRepository creates an empty in-memory store
func NewMemoryPositionRepository() *MemoryPositionRepository {
	return &MemoryPositionRepository{
		entries: make(map[uuid.UUID]*positionEntry),
		now:     func() time.Time { return domain.StoredTime(time.Now()) },
		newID:   uuid.NewV7,
	}
}

// Create validates the spec and stores a new OPEN position
func (r *MemoryPositionRepository) Create(ctx context.Context, spec domain.PositionSpec) (*domain.Position, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate position ID: %w", err)
	}

	entry := &positionEntry{position: domain.NewPosition(id, spec, r.now())}

	r.mu.Lock()
	r.entries[id] = entry
	r.order = append(r.order, entry)
	r.mu.Unlock()

	return entry.position.Clone(), nil
}

func (r *MemoryPositionRepository) entry(id uuid.UUID) (*positionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// GetByID retrieves a position by ID
func (r *MemoryPositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrNotFound
	}
	return e.position.Clone(), nil
}

// List returns matching positions in insertion order
func (r *MemoryPositionRepository) List(ctx context.Context, filter domain.PositionFilter) ([]*domain.Position, error) {
	r.mu.RLock()
	snapshot := make([]*positionEntry, len(r.order))
	copy(snapshot, r.order)
	r.mu.RUnlock()

	positions := make([]*domain.Position, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		if !e.deleted && filter.Matches(e.position) {
			positions = append(positions, e.position.Clone())
		}
		e.mu.Unlock()
	}

	return positions, nil
}

// MarkClosed sets the exit fields and flips the status in one critical section
func (r *MemoryPositionRepository) MarkClosed(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, exitTime time.Time, notes *string) (*domain.Position, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrNotFound
	}

	// Close on a copy so a rejected transition leaves the stored record untouched.
	next := e.position.Clone()
	if err := next.Close(exitPrice, exitTime, notes); err != nil {
		return nil, err
	}
	e.position = next

	return next.Clone(), nil
}

// Delete removes a position at any status
func (r *MemoryPositionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	e, ok := r.entry(id)
	if !ok {
		return domain.ErrNotFound
	}

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return domain.ErrNotFound
	}
	e.deleted = true
	e.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	for i, o := range r.order {
		if o == e {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

// UpdateNotes replaces the notes of an OPEN position
func (r *MemoryPositionRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Position, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrNotFound
	}
	if !e.position.IsOpen() {
		return nil, domain.ErrAlreadyClosed
	}

	n := notes
	e.position.Notes = &n
	e.position.UpdatedAt = r.now()

	return e.position.Clone(), nil
}

// Ping always succeeds for the in-memory store
func (r *MemoryPositionRepository) Ping(ctx context.Context) error {
	return nil
}

var _ domain.PositionRepository = (*MemoryPositionRepository)(nil)
