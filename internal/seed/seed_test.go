package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/store"
)

func TestDemo(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(store.NewMemoryStore())

	require.NoError(t, Demo(ctx, repo))

	rates, err := repo.Rates(ctx)
	require.NoError(t, err)
	assert.Len(t, rates, 6)

	stocks, err := repo.Stocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, len(demoStocks))
	for _, s := range stocks {
		assert.Len(t, s.Prices, 3, s.Symbol)
	}

	accounts, err := repo.AccountsByUser(ctx, DemoUser)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)

	bills, err := repo.Bills(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	for _, b := range bills {
		assert.Equal(t, models.BillStatusPending, b.Status)
	}
}

func TestDemoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.New(store.NewMemoryStore())

	require.NoError(t, Demo(ctx, repo))
	require.NoError(t, Demo(ctx, repo))

	rates, err := repo.Rates(ctx)
	require.NoError(t, err)
	assert.Len(t, rates, 6)

	accounts, err := repo.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}
