// Package seed loads the demo catalog into an empty store.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"jadbank/internal/currency"
	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/uuid"
)

// DemoUser owns the demo accounts and bills.
const DemoUser = "demo"

// DemoRates is the reference rate table.
var DemoRates = map[string]map[string]string{
	currency.JDC: {currency.IO: "3", currency.RUB: "150"},
	currency.IO:  {currency.JDC: "0.3333", currency.RUB: "50"},
	currency.RUB: {currency.JDC: "0.0067", currency.IO: "0.02"},
}

type demoStock struct {
	symbol, company     string
	jdc, io, rub, delta string
	volume              int64
}

var demoStocks = []demoStock{
	{"JAD", "Jade Holdings", "25", "75", "3750", "1.2", 15000},
	{"IOTX", "Io Transit", "12.5", "37.5", "1875", "-0.4", 8200},
	{"NRG", "Northern Energy Grid", "40", "120", "6000", "0.7", 4100},
}

var demoBalances = []struct {
	currency, name, balance string
}{
	{currency.JDC, "Main Jade", "1000"},
	{currency.IO, "IO account", "3000"},
	{currency.RUB, "Ruble account", "150000"},
}

// Demo populates rates, the stock catalog and a demo user. It does nothing
// when the store already has rates.
func Demo(ctx context.Context, repo *repository.Repository) error {
	existing, err := repo.Rates(ctx)
	if err != nil {
		return fmt.Errorf("read rates: %w", err)
	}
	if len(existing) > 0 {
		logger.Get().Debugw("store already seeded", "rates", len(existing))
		return nil
	}

	now := time.Now().UTC()

	for base, quotes := range DemoRates {
		for quote, rate := range quotes {
			edge := models.RateEdge{Base: base, Quote: quote, Rate: decimal.RequireFromString(rate)}
			if err := repo.AppendRate(ctx, edge); err != nil {
				return fmt.Errorf("append rate %s/%s: %w", base, quote, err)
			}
		}
	}

	for _, s := range demoStocks {
		stock := &models.Stock{
			ID:          uuid.New(),
			Symbol:      s.symbol,
			CompanyName: s.company,
			Change24h:   decimal.RequireFromString(s.delta),
			Volume:      s.volume,
			LastUpdated: now,
			Prices: []models.StockPrice{
				{Symbol: s.symbol, Currency: currency.JDC, Price: decimal.RequireFromString(s.jdc)},
				{Symbol: s.symbol, Currency: currency.IO, Price: decimal.RequireFromString(s.io)},
				{Symbol: s.symbol, Currency: currency.RUB, Price: decimal.RequireFromString(s.rub)},
			},
		}
		if err := repo.AppendStock(ctx, stock); err != nil {
			return fmt.Errorf("append stock %s: %w", s.symbol, err)
		}
	}

	for _, b := range demoBalances {
		account := &models.Account{
			ID:            uuid.New(),
			UserID:        DemoUser,
			AccountNumber: "DEMO-" + b.currency,
			Currency:      b.currency,
			Balance:       decimal.RequireFromString(b.balance),
			AccountName:   b.name,
			CreatedDate:   now,
			Status:        models.AccountStatusActive,
		}
		if err := repo.AppendAccount(ctx, account); err != nil {
			return fmt.Errorf("append account %s: %w", account.AccountNumber, err)
		}
	}

	bills := []*models.Bill{
		{Provider: "CityPower", Amount: decimal.RequireFromString("45.50"), Currency: currency.JDC, DueDate: now.AddDate(0, 0, 10)},
		{Provider: "AquaNet", Amount: decimal.RequireFromString("1200"), Currency: currency.RUB, DueDate: now.AddDate(0, 0, 20)},
	}
	for i, bill := range bills {
		bill.ID = uuid.New()
		bill.UserID = DemoUser
		bill.BillNumber = fmt.Sprintf("INV-DEMO-%02d", i+1)
		bill.Status = models.BillStatusPending
		if err := repo.AppendBill(ctx, bill); err != nil {
			return fmt.Errorf("append bill %s: %w", bill.BillNumber, err)
		}
	}

	logger.Get().Infow("seeded demo data",
		"rates", len(DemoRates), "stocks", len(demoStocks), "user", DemoUser)
	return nil
}
