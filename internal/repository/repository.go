// Package repository maps ledger records to and from row-store rows.
// Every method reads or writes through store.RowStore; nothing is cached.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"jadbank/internal/store"
)

// Logical tables.
const (
	TableAccounts     = "accounts"
	TableRates        = "rates"
	TableTransactions = "transactions"
	TableLoans        = "loans"
	TablePortfolios   = "portfolios"
	TableStocks       = "stocks"
	TableStockPrices  = "stock_prices"
	TableBills        = "bills"
	TableIntents      = "intents"
	TableFlags        = "account_flags"
	TableIdempotency  = "idempotency_keys"
	TableAuditLogs    = "audit_logs"
)

// ErrCorruptRow is returned when a stored row can't be decoded.
var ErrCorruptRow = errors.New("corrupt row")

// Repository gives typed access to the ledger tables.
type Repository struct {
	store store.RowStore
}

// New creates a Repository over s.
func New(s store.RowStore) *Repository {
	return &Repository{store: s}
}

// Store returns the underlying row store.
func (r *Repository) Store() store.RowStore {
	return r.store
}

// readAll decodes every row of table, skipping rows for which decode
// returns ok=false.
func readAll[T any](ctx context.Context, s store.RowStore, table string, decode func(store.Row) (T, bool, error)) ([]T, error) {
	rows, err := s.ReadRows(ctx, table)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, ok, err := decode(row)
		if err != nil {
			return nil, fmt.Errorf("%s ref %d: %w: %v", table, row.Ref, ErrCorruptRow, err)
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// FindRowByID returns the row of table whose id cell equals id.
func (r *Repository) FindRowByID(ctx context.Context, table, id string) (store.Row, bool, error) {
	rows, err := r.store.ReadRows(ctx, table)
	if err != nil {
		return store.Row{}, false, err
	}
	for _, row := range rows {
		if row.Cells.Get("id") == id {
			return row, true, nil
		}
	}
	return store.Row{}, false, nil
}

// ReadCell returns the current value of one cell.
func (r *Repository) ReadCell(ctx context.Context, table string, ref int, column string) (string, error) {
	rows, err := r.store.ReadRows(ctx, table)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row.Ref == ref {
			return row.Cells.Get(column), nil
		}
	}
	return "", fmt.Errorf("%s ref %d: %w", table, ref, store.ErrRowNotFound)
}

// UpdateCell writes one cell.
func (r *Repository) UpdateCell(ctx context.Context, table string, ref int, column, value string) error {
	return r.store.UpdateCell(ctx, table, ref, column, value)
}

// AppendRow appends raw cells to table.
func (r *Repository) AppendRow(ctx context.Context, table string, cells store.Cells) (store.Row, error) {
	return r.store.AppendRow(ctx, table, cells)
}

// --- cell codecs ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOptionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatOptionalDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
