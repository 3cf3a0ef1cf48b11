package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"jadbank/internal/models"
	"jadbank/internal/pagination"
	"jadbank/internal/ratetable"
	"jadbank/internal/repository"
)

// accountService handles the read side of accounts and history.
type accountService struct {
	repo           *repository.Repository
	rates          ratetable.Options
	reportCurrency string
}

// NewAccountService creates a new AccountServicer. Totals are reported in
// reportCurrency.
func NewAccountService(repo *repository.Repository, rates ratetable.Options, reportCurrency string) AccountServicer {
	return &accountService{repo: repo, rates: rates, reportCurrency: reportCurrency}
}

// GetUserAccounts lists the user's active accounts and their combined value.
func (s *accountService) GetUserAccounts(ctx context.Context, userID string) (*AccountsOverview, error) {
	accounts, err := s.repo.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, storeFailure(err)
	}
	table, err := ratetable.Load(ctx, s.repo, s.rates)
	if err != nil {
		return nil, storeFailure(err)
	}

	overview := &AccountsOverview{
		Accounts:       accounts,
		TotalBalance:   decimal.Zero,
		ReportCurrency: s.reportCurrency,
	}
	unconverted := map[string]bool{}
	for _, a := range accounts {
		value, _, err := table.Convert(a.Balance, a.Currency, s.reportCurrency, 2)
		if err != nil {
			unconverted[a.Currency] = true
			continue
		}
		overview.TotalBalance = overview.TotalBalance.Add(value)
	}
	overview.Unconverted = sortedKeys(unconverted)
	if overview.Accounts == nil {
		overview.Accounts = []models.Account{}
	}
	return overview, nil
}

// GetUserTransactions returns log entries touching any of the user's
// accounts, newest first.
func (s *accountService) GetUserTransactions(ctx context.Context, userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	// Closed accounts keep their history.
	owned := map[string]bool{}
	for _, a := range accounts {
		if a.UserID == userID {
			owned[a.AccountNumber] = true
		}
	}

	all, err := s.repo.Transactions(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}

	matched := make([]models.Transaction, 0)
	for i := len(all) - 1; i >= 0; i-- {
		tx := all[i]
		if !tx.Involves(owned) || !filter.matches(&tx) {
			continue
		}
		matched = append(matched, tx)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	result := pagination.Slice(matched, page)
	return &result, nil
}

func (f TransactionFilter) matches(tx *models.Transaction) bool {
	if f.Kind != nil && tx.Kind != *f.Kind {
		return false
	}
	if f.FromDate != nil && tx.Timestamp.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && tx.Timestamp.After(*f.ToDate) {
		return false
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
