// Package store defines the row-oriented storage the ledger runs on and its
// backends. A row store offers whole-table reads, appends and single-cell
// updates; it never offers atomicity across rows.
package store

import (
	"context"
	"errors"
)

// Sentinel errors returned by every backend.
var (
	// ErrUnavailable means the call definitely did not take effect.
	ErrUnavailable = errors.New("store unavailable")
	// ErrTimeout means the call's outcome is unknown.
	ErrTimeout = errors.New("store call timed out")
	// ErrRowNotFound is returned by UpdateCell for an unknown ref.
	ErrRowNotFound = errors.New("row not found")
)

// Cells maps column names to their string values.
type Cells map[string]string

// Get returns the value of column, or "" when absent.
func (c Cells) Get(column string) string {
	return c[column]
}

// Clone returns a copy that can be mutated freely.
func (c Cells) Clone() Cells {
	out := make(Cells, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Row is a snapshot of one stored row. Ref is stable for the life of the
// row and is the handle UpdateCell takes.
type Row struct {
	Ref   int
	Cells Cells
}

// RowStore is the storage collaborator consumed by the ledger.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go RowStore
type RowStore interface {
	// ReadRows returns every row of table in append order.
	ReadRows(ctx context.Context, table string) ([]Row, error)
	// AppendRow appends a row and returns it with its assigned ref.
	AppendRow(ctx context.Context, table string, cells Cells) (Row, error)
	// UpdateCell overwrites a single cell of an existing row.
	UpdateCell(ctx context.Context, table string, ref int, column, value string) error
}

// IsDefinite reports whether err proves the call had no effect, so the
// caller may compensate or retry without reconciliation.
func IsDefinite(err error) bool {
	return err != nil && !errors.Is(err, ErrTimeout) && !errors.Is(err, context.DeadlineExceeded)
}
