package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jadbank/internal/store"
	"jadbank/internal/store/mocks"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&store.RowRecord{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// backends runs the same contract against every RowStore implementation.
func backends(t *testing.T) map[string]store.RowStore {
	return map[string]store.RowStore{
		"memory": store.NewMemoryStore(),
		"gorm":   store.NewGormStore(openSQLite(t)),
	}
}

func TestRowStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first, err := s.AppendRow(ctx, "accounts", store.Cells{"id": "a1", "balance": "100"})
			require.NoError(t, err)
			second, err := s.AppendRow(ctx, "accounts", store.Cells{"id": "a2", "balance": "5"})
			require.NoError(t, err)
			_, err = s.AppendRow(ctx, "bills", store.Cells{"id": "b1"})
			require.NoError(t, err)

			assert.Less(t, first.Ref, second.Ref, "refs follow append order")

			rows, err := s.ReadRows(ctx, "accounts")
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "a1", rows[0].Cells.Get("id"))
			assert.Equal(t, "a2", rows[1].Cells.Get("id"))

			require.NoError(t, s.UpdateCell(ctx, "accounts", first.Ref, "balance", "40"))
			rows, err = s.ReadRows(ctx, "accounts")
			require.NoError(t, err)
			assert.Equal(t, "40", rows[0].Cells.Get("balance"))
			assert.Equal(t, "a1", rows[0].Cells.Get("id"), "other cells are untouched")

			empty, err := s.ReadRows(ctx, "loans")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestRowStoreUpdateUnknownRef(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			row, err := s.AppendRow(ctx, "accounts", store.Cells{"id": "a1"})
			require.NoError(t, err)

			err = s.UpdateCell(ctx, "accounts", row.Ref+1000, "balance", "1")
			assert.ErrorIs(t, err, store.ErrRowNotFound)

			err = s.UpdateCell(ctx, "bills", row.Ref, "status", "paid")
			assert.ErrorIs(t, err, store.ErrRowNotFound, "refs are scoped to their table")
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	cells := store.Cells{"id": "a1", "balance": "100"}
	_, err := s.AppendRow(ctx, "accounts", cells)
	require.NoError(t, err)
	cells["balance"] = "0"

	rows, err := s.ReadRows(ctx, "accounts")
	require.NoError(t, err)
	rows[0].Cells["balance"] = "999"

	again, err := s.ReadRows(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, "100", again[0].Cells.Get("balance"))
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.AppendRow(ctx, "transactions", store.Cells{"id": fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	rows, err := s.ReadRows(ctx, "transactions")
	require.NoError(t, err)
	assert.Len(t, rows, 50)

	seen := map[int]bool{}
	for _, r := range rows {
		assert.False(t, seen[r.Ref], "duplicate ref %d", r.Ref)
		seen[r.Ref] = true
	}
}

func TestWithTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("slow write becomes ErrTimeout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockRowStore(ctrl)
		inner.EXPECT().
			UpdateCell(gomock.Any(), "accounts", 1, "balance", "10").
			DoAndReturn(func(ctx context.Context, _ string, _ int, _, _ string) error {
				<-ctx.Done()
				return ctx.Err()
			})

		s := store.WithTimeout(inner, 10*time.Millisecond)
		err := s.UpdateCell(ctx, "accounts", 1, "balance", "10")

		assert.ErrorIs(t, err, store.ErrTimeout)
		assert.False(t, store.IsDefinite(err))
	})

	t.Run("transport failure stays definite", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockRowStore(ctrl)
		inner.EXPECT().
			AppendRow(gomock.Any(), "transactions", gomock.Any()).
			Return(store.Row{}, store.ErrUnavailable)

		s := store.WithTimeout(inner, time.Second)
		_, err := s.AppendRow(ctx, "transactions", store.Cells{"id": "t1"})

		assert.ErrorIs(t, err, store.ErrUnavailable)
		assert.True(t, store.IsDefinite(err))
	})

	t.Run("reads pass through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockRowStore(ctrl)
		inner.EXPECT().
			ReadRows(gomock.Any(), "rates").
			Return([]store.Row{{Ref: 1, Cells: store.Cells{"base": "JDC"}}}, nil)

		rows, err := store.WithTimeout(inner, time.Second).ReadRows(ctx, "rates")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("zero timeout returns the inner store", func(t *testing.T) {
		inner := store.NewMemoryStore()
		assert.Same(t, inner, store.WithTimeout(inner, 0))
	})
}

func TestIsDefinite(t *testing.T) {
	assert.False(t, store.IsDefinite(nil))
	assert.True(t, store.IsDefinite(store.ErrUnavailable))
	assert.False(t, store.IsDefinite(fmt.Errorf("wrapped: %w", store.ErrTimeout)))
	assert.False(t, store.IsDefinite(context.DeadlineExceeded))
	assert.True(t, store.IsDefinite(errors.New("boom")))
}
