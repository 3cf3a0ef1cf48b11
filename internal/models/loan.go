package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus represents the state of a loan
type LoanStatus string

const (
	LoanStatusActive LoanStatus = "active"
	// LoanStatusVoid marks a loan row written by an operation that was later compensated.
	LoanStatusVoid LoanStatus = "void"
)

// Loan is a disbursement record. Repayment is not modelled.
type Loan struct {
	Row
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	AccountNumber   string          `json:"account_number"`
	Principal       decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	TermMonths      int             `json:"term_months"`
	Remaining       decimal.Decimal `json:"remaining"`
	IssuedDate      time.Time       `json:"issued_date"`
	NextPaymentDate time.Time       `json:"next_payment"`
	Status          LoanStatus      `json:"status"`
}
