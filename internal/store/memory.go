package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process RowStore. It is safe for concurrent use and
// is the default backend for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	tables  map[string][]Row
	nextRef int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Row)}
}

// ReadRows returns a copy of the table so callers can't modify internal state.
func (m *MemoryStore) ReadRows(ctx context.Context, table string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{Ref: r.Ref, Cells: r.Cells.Clone()}
	}
	return out, nil
}

// AppendRow stores a copy of cells under a fresh ref.
func (m *MemoryStore) AppendRow(ctx context.Context, table string, cells Cells) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRef++
	row := Row{Ref: m.nextRef, Cells: cells.Clone()}
	m.tables[table] = append(m.tables[table], row)
	return Row{Ref: row.Ref, Cells: cells.Clone()}, nil
}

// UpdateCell overwrites one cell of the row identified by ref.
func (m *MemoryStore) UpdateCell(ctx context.Context, table string, ref int, column, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	for i := range rows {
		if rows[i].Ref == ref {
			rows[i].Cells[column] = value
			return nil
		}
	}
	return fmt.Errorf("%s ref %d: %w", table, ref, ErrRowNotFound)
}

// Compile-time check: ensure MemoryStore implements RowStore
var _ RowStore = (*MemoryStore)(nil)
