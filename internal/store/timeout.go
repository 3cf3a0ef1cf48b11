package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// timeoutStore bounds every call of the wrapped store.
type timeoutStore struct {
	inner   RowStore
	timeout time.Duration
}

// WithTimeout wraps inner so that each call runs under its own deadline.
// A deadline hit while waiting on the backend surfaces as ErrTimeout.
func WithTimeout(inner RowStore, timeout time.Duration) RowStore {
	if timeout <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, timeout: timeout}
}

func (s *timeoutStore) ReadRows(ctx context.Context, table string) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.inner.ReadRows(ctx, table)
	return rows, deadline(ctx, err)
}

func (s *timeoutStore) AppendRow(ctx context.Context, table string, cells Cells) (Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := s.inner.AppendRow(ctx, table, cells)
	return row, deadline(ctx, err)
}

func (s *timeoutStore) UpdateCell(ctx context.Context, table string, ref int, column, value string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return deadline(ctx, s.inner.UpdateCell(ctx, table, ref, column, value))
}

func deadline(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
