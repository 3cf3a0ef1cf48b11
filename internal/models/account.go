package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is a single-currency balance holder owned by one user.
// Balance never goes below zero.
type Account struct {
	Row
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	AccountName   string          `json:"account_name"`
	CreatedDate   time.Time       `json:"created_date"`
	Status        AccountStatus   `json:"status"`
}

// IsActive reports whether the account can take part in ledger operations.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
