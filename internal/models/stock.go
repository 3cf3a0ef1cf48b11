package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a catalog entry. Prices are kept per currency in StockPrice.
type Stock struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Change24h   decimal.Decimal `json:"change_24h"`
	Volume      int64           `json:"volume"`
	LastUpdated time.Time       `json:"last_updated"`
	Prices      []StockPrice    `json:"prices,omitempty"`
}

// StockPrice is the price of one share of Symbol quoted in Currency.
type StockPrice struct {
	Symbol   string          `json:"symbol"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

// PriceIn returns the price quoted in currency, if the catalog has one.
func (s *Stock) PriceIn(currency string) (decimal.Decimal, bool) {
	for _, p := range s.Prices {
		if p.Currency == currency {
			return p.Price, true
		}
	}
	return decimal.Zero, false
}
