package repository

import (
	"context"

	"jadbank/internal/models"
	"jadbank/internal/store"
)

// AccountCells encodes an account row.
func AccountCells(a *models.Account) store.Cells {
	return store.Cells{
		"id":             a.ID,
		"user_id":        a.UserID,
		"account_number": a.AccountNumber,
		"currency":       a.Currency,
		"balance":        a.Balance.String(),
		"account_name":   a.AccountName,
		"created_date":   formatTime(a.CreatedDate),
		"status":         string(a.Status),
	}
}

func decodeAccount(row store.Row) (models.Account, bool, error) {
	c := row.Cells
	balance, err := parseDecimal(c.Get("balance"))
	if err != nil {
		return models.Account{}, false, err
	}
	created, err := parseTime(c.Get("created_date"))
	if err != nil {
		return models.Account{}, false, err
	}
	status := models.AccountStatus(c.Get("status"))
	if status == "" {
		status = models.AccountStatusActive
	}
	return models.Account{
		Row:           models.Row{Ref: row.Ref},
		ID:            c.Get("id"),
		UserID:        c.Get("user_id"),
		AccountNumber: c.Get("account_number"),
		Currency:      c.Get("currency"),
		Balance:       balance,
		AccountName:   c.Get("account_name"),
		CreatedDate:   created,
		Status:        status,
	}, true, nil
}

// Accounts returns every account, closed ones included.
func (r *Repository) Accounts(ctx context.Context) ([]models.Account, error) {
	return readAll(ctx, r.store, TableAccounts, decodeAccount)
}

// AccountsByNumber indexes every active account by its number. Closed
// accounts are left out so callers treat them as absent.
func (r *Repository) AccountsByNumber(ctx context.Context) (map[string]models.Account, error) {
	all, err := r.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Account, len(all))
	for _, a := range all {
		if a.IsActive() {
			out[a.AccountNumber] = a
		}
	}
	return out, nil
}

// AccountsByUser returns a user's active accounts in creation order.
func (r *Repository) AccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	all, err := r.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Account
	for _, a := range all {
		if a.UserID == userID && a.IsActive() {
			out = append(out, a)
		}
	}
	return out, nil
}

// AppendAccount stores a new account and records its ref on a.
func (r *Repository) AppendAccount(ctx context.Context, a *models.Account) error {
	row, err := r.store.AppendRow(ctx, TableAccounts, AccountCells(a))
	if err != nil {
		return err
	}
	a.Ref = row.Ref
	return nil
}
