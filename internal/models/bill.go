package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus represents the payment state of a bill
type BillStatus string

const (
	BillStatusPending BillStatus = "pending"
	BillStatusPaid    BillStatus = "paid"
)

// Bill is issued by a provider to a user and paid at most once.
type Bill struct {
	Row
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	BillNumber    string          `json:"bill_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DueDate       time.Time       `json:"due_date"`
	Provider      string          `json:"provider"`
	Status        BillStatus      `json:"status"`
	AccountNumber string          `json:"account_number,omitempty"`
}
