package services

import (
	"context"

	"jadbank/internal/models"
	"jadbank/internal/repository"
)

// loanService lists issued loans.
type loanService struct {
	repo *repository.Repository
}

// NewLoanService creates a new LoanServicer.
func NewLoanService(repo *repository.Repository) LoanServicer {
	return &loanService{repo: repo}
}

// GetUserLoans returns the user's active loans.
func (s *loanService) GetUserLoans(ctx context.Context, userID string) ([]models.Loan, error) {
	all, err := s.repo.Loans(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	loans := []models.Loan{}
	for _, l := range all {
		if l.UserID == userID && l.Status == models.LoanStatusActive {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

// billService lists bills.
type billService struct {
	repo *repository.Repository
}

// NewBillService creates a new BillServicer.
func NewBillService(repo *repository.Repository) BillServicer {
	return &billService{repo: repo}
}

// GetPendingBills returns the user's unpaid bills.
func (s *billService) GetPendingBills(ctx context.Context, userID string) ([]models.Bill, error) {
	all, err := s.repo.Bills(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	bills := []models.Bill{}
	for _, b := range all {
		if b.UserID == userID && b.Status == models.BillStatusPending {
			bills = append(bills, b)
		}
	}
	return bills, nil
}
