package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingStatus represents whether a portfolio entry counts toward holdings
type HoldingStatus string

const (
	HoldingStatusActive HoldingStatus = "active"
	HoldingStatusVoid   HoldingStatus = "void"
)

// PortfolioEntry records one stock purchase. Holdings are the sum of
// active entries per symbol.
type PortfolioEntry struct {
	Row
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Currency      string          `json:"currency"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	AccountNumber string          `json:"account_number"`
	Status        HoldingStatus   `json:"-"`
}
