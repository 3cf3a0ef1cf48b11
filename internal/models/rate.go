package models

import "github.com/shopspring/decimal"

// RateEdge is a directed conversion factor: 1 unit of Base buys Rate units of Quote.
type RateEdge struct {
	Base  string          `json:"base_currency"`
	Quote string          `json:"quote_currency"`
	Rate  decimal.Decimal `json:"rate"`
}
