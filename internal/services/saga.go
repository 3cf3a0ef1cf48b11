package services

import (
	"context"
	"time"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/events"
	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/store"
)

// saga applies an intent's legs in order. A definite store failure is
// compensated in line; anything whose outcome is unknown is fenced and
// handed to the reconciler.
type saga struct {
	repo      *repository.Repository
	locks     *LockTable
	publisher events.Publisher
	prefix    string
	wake      func()
	// track hands a suspended intent's idempotency key to the reconciler.
	track     func(*models.Intent)
}

// run records the intent and applies it. The caller holds intent.LockKeys.
func (s *saga) run(ctx context.Context, intent *models.Intent) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}

	if err := s.repo.AppendIntent(ctx, intent); err != nil {
		if store.IsDefinite(err) {
			return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
		}
		return s.suspend(intent, err)
	}

	// Past this point the caller going away must not leave legs half done.
	ctx = context.WithoutCancel(ctx)

	for i, leg := range intent.Legs {
		if err := applyLeg(ctx, s.repo, leg); err != nil {
			if store.IsDefinite(err) {
				return s.compensate(ctx, intent, i, err)
			}
			return s.suspend(intent, err)
		}
	}

	if err := s.repo.SetIntentStatus(ctx, intent, models.IntentStatusCommitted, ""); err != nil {
		// The log entry is written, so the reconciler will commit it.
		logger.Get().Warnw("failed to mark intent committed", "intent_id", intent.ID, "error", err)
		s.wake()
	}

	logger.Get().Infow("operation committed", "intent_id", intent.ID, "kind", intent.Kind, "user_id", intent.UserID)
	s.publishCompleted(ctx, intent, false)
	return nil
}

// compensate reverses the first applied legs, newest first.
func (s *saga) compensate(ctx context.Context, intent *models.Intent, applied int, cause error) error {
	log := logger.Get()
	log.Warnw("store write failed, compensating", "intent_id", intent.ID, "applied_legs", applied, "error", cause)

	for j := applied - 1; j >= 0; j-- {
		if err := revertLeg(ctx, s.repo, intent.Legs[j]); err != nil {
			if serr := s.repo.SetIntentStatus(ctx, intent, models.IntentStatusCompensationPending, cause.Error()); serr != nil {
				log.Errorw("failed to mark intent compensation_pending", "intent_id", intent.ID, "error", serr)
			}
			log.Errorw("compensation failed", "intent_id", intent.ID, "leg", j, "error", err)
			return s.suspend(intent, err)
		}
	}

	if err := s.repo.SetIntentStatus(ctx, intent, models.IntentStatusCompensated, cause.Error()); err != nil {
		// Still pending in the store. Releasing the key now would let a
		// retry's balances pass for this intent's legs; the reconciler
		// abandons it and settles the key.
		log.Warnw("failed to mark intent compensated", "intent_id", intent.ID, "error", err)
		return s.suspend(intent, err)
	}
	appendFailedEntry(ctx, s.repo, intent)
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, cause)
}

// suspend fences the intent's keys until reconciliation decides its fate.
func (s *saga) suspend(intent *models.Intent, cause error) error {
	s.locks.Fence(intent.ID, intent.LockKeys...)
	s.track(intent)
	logger.Get().Warnw("operation outcome unknown, awaiting reconciliation",
		"intent_id", intent.ID,
		"kind", intent.Kind,
		"lock_keys", intent.LockKeys,
		"error", cause,
	)
	s.wake()
	return apperrors.Wrap(apperrors.ErrOperationAmbiguous, cause)
}

func (s *saga) publishCompleted(ctx context.Context, intent *models.Intent, reconciled bool) {
	publishCompleted(ctx, s.publisher, s.prefix, intent, reconciled)
}

// appendFailedEntry records a failed operation in the transaction log,
// unless its entry already exists. Best effort.
func appendFailedEntry(ctx context.Context, repo *repository.Repository, intent *models.Intent) {
	if len(intent.Legs) == 0 {
		return
	}
	last := intent.Legs[len(intent.Legs)-1]
	if !isLogLeg(last) {
		return
	}
	if _, found, err := repo.FindRowByID(ctx, last.Table, last.RowID); err != nil || found {
		return
	}
	cells := store.Cells(last.Cells).Clone()
	cells["status"] = string(models.TransactionStatusFailed)
	cells["completed_at"] = ""
	if _, err := repo.AppendRow(ctx, last.Table, cells); err != nil {
		logger.Get().Warnw("failed to record failed transaction", "intent_id", intent.ID, "error", err)
	}
}

func publishCompleted(ctx context.Context, pub events.Publisher, prefix string, intent *models.Intent, reconciled bool) {
	if pub == nil || len(intent.Legs) == 0 {
		return
	}
	last := intent.Legs[len(intent.Legs)-1]
	if !isLogLeg(last) {
		return
	}
	cells := store.Cells(last.Cells)
	event := events.OperationCompleted{
		TransactionID: intent.ID,
		Kind:          string(intent.Kind),
		UserID:        intent.UserID,
		FromRef:       cells.Get("from"),
		ToRef:         cells.Get("to"),
		Currency:      cells.Get("currency"),
		Reconciled:    reconciled,
		OccurredAt:    time.Now().UTC(),
	}
	event.Amount, _ = parseAmount(cells.Get("amount"))
	if err := pub.Publish(ctx, events.TopicName(prefix, events.TopicOperationCompleted), intent.ID, event); err != nil {
		logger.Get().Warnw("failed to publish event", "topic", events.TopicOperationCompleted, "intent_id", intent.ID, "error", err)
	}
}
