package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of money movement
type TransactionKind string

const (
	TransactionKindTransfer      TransactionKind = "transfer"
	TransactionKindExchange      TransactionKind = "exchange"
	TransactionKindLoan          TransactionKind = "loan"
	TransactionKindStockPurchase TransactionKind = "stock_purchase"
	TransactionKindBillPayment   TransactionKind = "bill_payment"
)

// TransactionStatus represents the outcome recorded in the log
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable entry in the transaction log. Amount and
// Currency describe the debited side; ToAmount, ToCurrency and Rate are
// set when the credited side differs.
type Transaction struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"date"`
	FromRef        string            `json:"from_account"`
	ToRef          string            `json:"to_account"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Kind           TransactionKind   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Description    string            `json:"description"`
	ToAmount       *decimal.Decimal  `json:"to_amount,omitempty"`
	ToCurrency     string            `json:"to_currency,omitempty"`
	Rate           *decimal.Decimal  `json:"rate,omitempty"`
	IdempotencyKey string            `json:"-"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// Involves reports whether any of the given references is a side of t.
func (t *Transaction) Involves(refs map[string]bool) bool {
	return refs[t.FromRef] || refs[t.ToRef]
}
