package services

import (
	"context"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/repository"
)

// operatorService backs the manual-review endpoints and ledgerctl.
type operatorService struct {
	repo       *repository.Repository
	reconciler *Reconciler
}

// NewOperatorService creates a new OperatorServicer.
func NewOperatorService(repo *repository.Repository, reconciler *Reconciler) OperatorServicer {
	return &operatorService{repo: repo, reconciler: reconciler}
}

// Reconcile runs one sweep now.
func (s *operatorService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report, err := s.reconciler.Sweep(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return report, nil
}

// ListOpenFlags returns flags still blocking accounts.
func (s *operatorService) ListOpenFlags(ctx context.Context) ([]models.AccountFlag, error) {
	flags, err := s.repo.OpenFlags(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	if flags == nil {
		flags = []models.AccountFlag{}
	}
	return flags, nil
}

// ClearFlag lifts a flag after manual review.
func (s *operatorService) ClearFlag(ctx context.Context, flagID string) (*models.AccountFlag, error) {
	flags, err := s.repo.Flags(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	for i := range flags {
		f := &flags[i]
		if f.ID != flagID {
			continue
		}
		if f.Status == models.FlagStatusCleared {
			return f, nil
		}
		if err := s.repo.ClearFlag(ctx, f); err != nil {
			return nil, storeFailure(err)
		}
		logger.Get().Infow("account flag cleared", "flag_id", f.ID, "account_number", f.AccountNumber, "intent_id", f.IntentID)
		return f, nil
	}
	return nil, apperrors.ErrFlagNotFound
}

// ListOpenIntents returns intents awaiting reconciliation.
func (s *operatorService) ListOpenIntents(ctx context.Context) ([]models.Intent, error) {
	intents, err := s.repo.OpenIntents(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	if intents == nil {
		intents = []models.Intent{}
	}
	return intents, nil
}
