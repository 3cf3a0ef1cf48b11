package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"jadbank/internal/models"
	"jadbank/internal/repository"
)

// RowStore keeps idempotency records in the ledger's own row store. The
// row store has no conditional append, so reservations are serialized in
// process.
type RowStore struct {
	mu   sync.Mutex
	repo *repository.Repository
}

// NewRowStore creates a Store over repo.
func NewRowStore(repo *repository.Repository) *RowStore {
	return &RowStore{repo: repo}
}

// Reserve implements Store.
func (s *RowStore) Reserve(ctx context.Context, rec *models.IdempotencyRecord) (*models.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found, err := s.repo.FindIdempotency(ctx, rec.Scope, rec.Key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		if err := s.repo.AppendIdempotency(ctx, rec); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	if existing.Status != models.IdempotencyRejected {
		return existing, false, nil
	}

	rec.Ref = existing.Ref
	if err := s.repo.UpdateIdempotency(ctx, rec); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

// Complete implements Store.
func (s *RowStore) Complete(ctx context.Context, scope, key, intentID string, response json.RawMessage) error {
	return s.update(ctx, scope, key, func(rec *models.IdempotencyRecord) {
		rec.Status = models.IdempotencyCompleted
		rec.Response = response
		if intentID != "" {
			rec.IntentID = intentID
		}
	})
}

// Reject implements Store.
func (s *RowStore) Reject(ctx context.Context, scope, key string) error {
	return s.update(ctx, scope, key, func(rec *models.IdempotencyRecord) {
		rec.Status = models.IdempotencyRejected
		rec.Response = nil
	})
}

// MarkAmbiguous implements Store. Records already settled by
// reconciliation are left alone.
func (s *RowStore) MarkAmbiguous(ctx context.Context, scope, key, intentID string) error {
	return s.update(ctx, scope, key, func(rec *models.IdempotencyRecord) {
		if rec.Status != models.IdempotencyInFlight {
			return
		}
		rec.Status = models.IdempotencyAmbiguous
		if intentID != "" {
			rec.IntentID = intentID
		}
	})
}

// Find implements Store.
func (s *RowStore) Find(ctx context.Context, scope, key string) (*models.IdempotencyRecord, bool, error) {
	return s.repo.FindIdempotency(ctx, scope, key)
}

func (s *RowStore) update(ctx context.Context, scope, key string, mutate func(*models.IdempotencyRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found, err := s.repo.FindIdempotency(ctx, scope, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("idempotency record %s/%s not found", scope, key)
	}
	mutate(rec)
	rec.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateIdempotency(ctx, rec)
}
