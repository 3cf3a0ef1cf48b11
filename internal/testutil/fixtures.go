package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jadbank/internal/models"
	"jadbank/internal/repository"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAccount creates an active account with the given balance.
func CreateTestAccount(t *testing.T, repo *repository.Repository, userID, currency, balance string) *models.Account {
	t.Helper()

	n := nextID()
	account := &models.Account{
		ID:            fmt.Sprintf("acct-%d", n),
		UserID:        userID,
		AccountNumber: fmt.Sprintf("ACC%06d", n),
		Currency:      currency,
		Balance:       decimal.RequireFromString(balance),
		AccountName:   fmt.Sprintf("%s account %d", currency, n),
		CreatedDate:   time.Now().UTC(),
		Status:        models.AccountStatusActive,
	}
	if err := repo.AppendAccount(ctx(), account); err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// SeedRates stores the reference rate table:
// JDC→IO 3, JDC→RUB 150, IO→JDC 0.3333, RUB→JDC 0.0067.
func SeedRates(t *testing.T, repo *repository.Repository) {
	t.Helper()
	CreateTestRates(t, repo, map[string]map[string]string{
		"JDC": {"IO": "3", "RUB": "150"},
		"IO":  {"JDC": "0.3333"},
		"RUB": {"JDC": "0.0067"},
	})
}

// CreateTestRates stores the given nested base→quote→rate map.
func CreateTestRates(t *testing.T, repo *repository.Repository, rates map[string]map[string]string) {
	t.Helper()
	for base, quotes := range rates {
		for quote, rate := range quotes {
			edge := models.RateEdge{Base: base, Quote: quote, Rate: decimal.RequireFromString(rate)}
			if err := repo.AppendRate(ctx(), edge); err != nil {
				t.Fatalf("failed to create test rate: %v", err)
			}
		}
	}
}

// CreateTestStock adds a stock priced in each currency of prices.
func CreateTestStock(t *testing.T, repo *repository.Repository, symbol string, prices map[string]string) *models.Stock {
	t.Helper()

	stock := &models.Stock{
		ID:          fmt.Sprintf("stock-%d", nextID()),
		Symbol:      symbol,
		CompanyName: symbol + " Corp",
		Change24h:   decimal.Zero,
		Volume:      1000,
		LastUpdated: time.Now().UTC(),
	}
	for cur, price := range prices {
		stock.Prices = append(stock.Prices, models.StockPrice{Symbol: symbol, Currency: cur, Price: decimal.RequireFromString(price)})
	}
	if err := repo.AppendStock(ctx(), stock); err != nil {
		t.Fatalf("failed to create test stock: %v", err)
	}
	return stock
}

// CreateTestBill creates a pending bill owned by userID.
func CreateTestBill(t *testing.T, repo *repository.Repository, userID, currency, amount string) *models.Bill {
	t.Helper()

	n := nextID()
	bill := &models.Bill{
		ID:         fmt.Sprintf("bill-%d", n),
		UserID:     userID,
		BillNumber: fmt.Sprintf("INV-%04d", n),
		Amount:     decimal.RequireFromString(amount),
		Currency:   currency,
		DueDate:    time.Now().UTC().AddDate(0, 0, 14),
		Provider:   "CityPower",
		Status:     models.BillStatusPending,
	}
	if err := repo.AppendBill(ctx(), bill); err != nil {
		t.Fatalf("failed to create test bill: %v", err)
	}
	return bill
}

// Balance reads the current balance of an account.
func Balance(t *testing.T, repo *repository.Repository, accountNumber string) decimal.Decimal {
	t.Helper()

	accounts, err := repo.Accounts(ctx())
	if err != nil {
		t.Fatalf("failed to read accounts: %v", err)
	}
	for _, a := range accounts {
		if a.AccountNumber == accountNumber {
			return a.Balance
		}
	}
	t.Fatalf("account %s not found", accountNumber)
	return decimal.Zero
}

// AssertBalance fails the test if the account balance differs from want.
func AssertBalance(t *testing.T, repo *repository.Repository, accountNumber, want string) {
	t.Helper()

	got := Balance(t, repo, accountNumber)
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("account %s: expected balance %s, got %s", accountNumber, want, got)
	}
}
