package repository

import (
	"context"
	"strconv"

	"jadbank/internal/models"
	"jadbank/internal/store"
)

// TransactionCells encodes a transaction log row.
func TransactionCells(t *models.Transaction) store.Cells {
	cells := store.Cells{
		"id":              t.ID,
		"date":            formatTime(t.Timestamp),
		"from":            t.FromRef,
		"to":              t.ToRef,
		"amount":          t.Amount.String(),
		"currency":        t.Currency,
		"type":            string(t.Kind),
		"status":          string(t.Status),
		"description":     t.Description,
		"to_amount":       formatOptionalDecimal(t.ToAmount),
		"to_currency":     t.ToCurrency,
		"rate":            formatOptionalDecimal(t.Rate),
		"idempotency_key": t.IdempotencyKey,
	}
	if t.CompletedAt != nil {
		cells["completed_at"] = formatTime(*t.CompletedAt)
	}
	return cells
}

func decodeTransaction(row store.Row) (models.Transaction, bool, error) {
	c := row.Cells
	ts, err := parseTime(c.Get("date"))
	if err != nil {
		return models.Transaction{}, false, err
	}
	amount, err := parseDecimal(c.Get("amount"))
	if err != nil {
		return models.Transaction{}, false, err
	}
	toAmount, err := parseOptionalDecimal(c.Get("to_amount"))
	if err != nil {
		return models.Transaction{}, false, err
	}
	rate, err := parseOptionalDecimal(c.Get("rate"))
	if err != nil {
		return models.Transaction{}, false, err
	}
	completed, err := parseOptionalTime(c.Get("completed_at"))
	if err != nil {
		return models.Transaction{}, false, err
	}
	return models.Transaction{
		ID:             c.Get("id"),
		Timestamp:      ts,
		FromRef:        c.Get("from"),
		ToRef:          c.Get("to"),
		Amount:         amount,
		Currency:       c.Get("currency"),
		Kind:           models.TransactionKind(c.Get("type")),
		Status:         models.TransactionStatus(c.Get("status")),
		Description:    c.Get("description"),
		ToAmount:       toAmount,
		ToCurrency:     c.Get("to_currency"),
		Rate:           rate,
		IdempotencyKey: c.Get("idempotency_key"),
		CompletedAt:    completed,
	}, true, nil
}

// Transactions returns the whole log in append order.
func (r *Repository) Transactions(ctx context.Context) ([]models.Transaction, error) {
	return readAll(ctx, r.store, TableTransactions, decodeTransaction)
}

// AppendTransaction appends one log entry.
func (r *Repository) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := r.store.AppendRow(ctx, TableTransactions, TransactionCells(t))
	return err
}

// LoanCells encodes a loan row.
func LoanCells(l *models.Loan) store.Cells {
	return store.Cells{
		"id":             l.ID,
		"user_id":        l.UserID,
		"account_number": l.AccountNumber,
		"amount":         l.Principal.String(),
		"currency":       l.Currency,
		"interest_rate":  l.InterestRate.String(),
		"term_months":    strconv.Itoa(l.TermMonths),
		"remaining":      l.Remaining.String(),
		"issued_date":    formatTime(l.IssuedDate),
		"next_payment":   formatTime(l.NextPaymentDate),
		"status":         string(l.Status),
	}
}

func decodeLoan(row store.Row) (models.Loan, bool, error) {
	c := row.Cells
	if models.LoanStatus(c.Get("status")) == models.LoanStatusVoid {
		return models.Loan{}, false, nil
	}
	principal, err := parseDecimal(c.Get("amount"))
	if err != nil {
		return models.Loan{}, false, err
	}
	rate, err := parseDecimal(c.Get("interest_rate"))
	if err != nil {
		return models.Loan{}, false, err
	}
	remaining, err := parseDecimal(c.Get("remaining"))
	if err != nil {
		return models.Loan{}, false, err
	}
	term, err := parseInt(c.Get("term_months"))
	if err != nil {
		return models.Loan{}, false, err
	}
	issued, err := parseTime(c.Get("issued_date"))
	if err != nil {
		return models.Loan{}, false, err
	}
	next, err := parseTime(c.Get("next_payment"))
	if err != nil {
		return models.Loan{}, false, err
	}
	return models.Loan{
		Row:             models.Row{Ref: row.Ref},
		ID:              c.Get("id"),
		UserID:          c.Get("user_id"),
		AccountNumber:   c.Get("account_number"),
		Principal:       principal,
		Currency:        c.Get("currency"),
		InterestRate:    rate,
		TermMonths:      int(term),
		Remaining:       remaining,
		IssuedDate:      issued,
		NextPaymentDate: next,
		Status:          models.LoanStatus(c.Get("status")),
	}, true, nil
}

// Loans returns every non-void loan.
func (r *Repository) Loans(ctx context.Context) ([]models.Loan, error) {
	return readAll(ctx, r.store, TableLoans, decodeLoan)
}

// PortfolioCells encodes a portfolio entry row.
func PortfolioCells(p *models.PortfolioEntry) store.Cells {
	status := p.Status
	if status == "" {
		status = models.HoldingStatusActive
	}
	return store.Cells{
		"id":             p.ID,
		"user_id":        p.UserID,
		"symbol":         p.Symbol,
		"quantity":       strconv.FormatInt(p.Quantity, 10),
		"purchase_price": p.PurchasePrice.String(),
		"currency":       p.Currency,
		"purchase_date":  formatTime(p.PurchaseDate),
		"account_number": p.AccountNumber,
		"status":         string(status),
	}
}

func decodePortfolioEntry(row store.Row) (models.PortfolioEntry, bool, error) {
	c := row.Cells
	if models.HoldingStatus(c.Get("status")) == models.HoldingStatusVoid {
		return models.PortfolioEntry{}, false, nil
	}
	qty, err := parseInt(c.Get("quantity"))
	if err != nil {
		return models.PortfolioEntry{}, false, err
	}
	price, err := parseDecimal(c.Get("purchase_price"))
	if err != nil {
		return models.PortfolioEntry{}, false, err
	}
	purchased, err := parseTime(c.Get("purchase_date"))
	if err != nil {
		return models.PortfolioEntry{}, false, err
	}
	return models.PortfolioEntry{
		Row:           models.Row{Ref: row.Ref},
		ID:            c.Get("id"),
		UserID:        c.Get("user_id"),
		Symbol:        c.Get("symbol"),
		Quantity:      qty,
		PurchasePrice: price,
		Currency:      c.Get("currency"),
		PurchaseDate:  purchased,
		AccountNumber: c.Get("account_number"),
		Status:        models.HoldingStatusActive,
	}, true, nil
}

// PortfolioEntries returns every non-void portfolio entry.
func (r *Repository) PortfolioEntries(ctx context.Context) ([]models.PortfolioEntry, error) {
	return readAll(ctx, r.store, TablePortfolios, decodePortfolioEntry)
}
