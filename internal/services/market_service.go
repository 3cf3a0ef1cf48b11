package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"jadbank/internal/models"
	"jadbank/internal/ratetable"
	"jadbank/internal/repository"
)

// marketService handles rates, the stock catalog and portfolio valuation.
type marketService struct {
	repo           *repository.Repository
	rates          ratetable.Options
	reportCurrency string
	now            func() time.Time
}

// NewMarketService creates a new MarketServicer.
func NewMarketService(repo *repository.Repository, rates ratetable.Options, reportCurrency string) MarketServicer {
	return &marketService{
		repo:           repo,
		rates:          rates,
		reportCurrency: reportCurrency,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// GetRates returns the current rate snapshot as a nested map.
func (s *marketService) GetRates(ctx context.Context) (*RateSnapshot, error) {
	table, err := ratetable.Load(ctx, s.repo, s.rates)
	if err != nil {
		return nil, storeFailure(err)
	}
	return &RateSnapshot{Rates: table.Nested(), LastUpdated: s.now()}, nil
}

// GetStocks returns the catalog ordered by symbol.
func (s *marketService) GetStocks(ctx context.Context) ([]models.Stock, error) {
	stocks, err := s.repo.Stocks(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Symbol < stocks[j].Symbol })
	if stocks == nil {
		stocks = []models.Stock{}
	}
	return stocks, nil
}

// GetPortfolio values each of the user's purchases at the current catalog
// price in its own currency and totals them in the report currency.
func (s *marketService) GetPortfolio(ctx context.Context, userID string) (*PortfolioSummary, error) {
	entries, err := s.repo.PortfolioEntries(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	stocks, err := s.repo.Stocks(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	table, err := ratetable.Load(ctx, s.repo, s.rates)
	if err != nil {
		return nil, storeFailure(err)
	}

	summary := &PortfolioSummary{
		Portfolio:      []Holding{},
		TotalValue:     decimal.Zero,
		TotalInvested:  decimal.Zero,
		ReportCurrency: s.reportCurrency,
	}
	unconverted := map[string]bool{}
	hundred := decimal.NewFromInt(100)

	for _, e := range entries {
		if e.UserID != userID {
			continue
		}
		qty := decimal.NewFromInt(e.Quantity)
		h := Holding{PortfolioEntry: e, Invested: e.PurchasePrice.Mul(qty)}
		if stock := findStock(stocks, e.Symbol); stock != nil {
			h.CompanyName = stock.CompanyName
			if price, ok := stock.PriceIn(e.Currency); ok {
				h.CurrentPrice = price
				h.Priced = true
			}
		}
		if !h.Priced {
			// Without a quote the position is carried at cost.
			h.CurrentPrice = e.PurchasePrice
		}
		h.Value = h.CurrentPrice.Mul(qty)
		h.Profit = h.Value.Sub(h.Invested).Round(2)
		if h.Invested.IsPositive() {
			h.ProfitPercent = h.Profit.Div(h.Invested).Mul(hundred).Round(2)
		}
		summary.Portfolio = append(summary.Portfolio, h)

		value, _, err := table.Convert(h.Value, e.Currency, s.reportCurrency, 2)
		if err != nil {
			unconverted[e.Currency] = true
			continue
		}
		invested, _, _ := table.Convert(h.Invested, e.Currency, s.reportCurrency, 2)
		summary.TotalValue = summary.TotalValue.Add(value)
		summary.TotalInvested = summary.TotalInvested.Add(invested)
	}
	summary.Unconverted = sortedKeys(unconverted)
	return summary, nil
}
