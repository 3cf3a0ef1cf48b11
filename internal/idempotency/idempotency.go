// Package idempotency makes ledger operations safe to retry. A caller key,
// scoped to the user, is reserved before the operation runs and bound to
// the response it produced; a retry with the same key and request replays
// that response instead of executing again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	apperrors "jadbank/internal/errors"
	"jadbank/internal/logger"
	"jadbank/internal/models"
)

// ErrOutcomeUnknown marks failures whose effect on the store could not be
// determined. The key stays reserved until reconciliation settles it.
var ErrOutcomeUnknown = errors.New("operation outcome unknown")

// Store persists idempotency records.
type Store interface {
	// Reserve stores rec as in flight unless a live record exists for the
	// same scope and key, in which case that record is returned and
	// reserved is false. Rejected records are replaced.
	Reserve(ctx context.Context, rec *models.IdempotencyRecord) (existing *models.IdempotencyRecord, reserved bool, err error)
	// Complete binds the response to the key.
	Complete(ctx context.Context, scope, key, intentID string, response json.RawMessage) error
	// Reject releases the key so that it can be used again.
	Reject(ctx context.Context, scope, key string) error
	// MarkAmbiguous keeps the key reserved pending reconciliation.
	MarkAmbiguous(ctx context.Context, scope, key, intentID string) error
	// Find returns the record for scope and key.
	Find(ctx context.Context, scope, key string) (*models.IdempotencyRecord, bool, error)
}

// Identified is implemented by results that name the intent that produced
// them.
type Identified interface {
	IntentRef() string
}

// Guard runs operations under an idempotency key.
type Guard struct {
	store Store
}

// NewGuard creates a Guard backed by s.
func NewGuard(s Store) *Guard {
	return &Guard{store: s}
}

// Store returns the record store.
func (g *Guard) Store() Store {
	return g.store
}

// Fingerprint hashes an operation name and its request body.
func Fingerprint(operation string, request any) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(operation+"\x00"), body...))
	return hex.EncodeToString(sum[:]), nil
}

// Do executes fn at most once per (scope, key). When the key was already
// completed with the same request, the stored response is returned with
// replayed set and fn is not called.
func (g *Guard) Do(ctx context.Context, scope, key, operation string, request any, fn func(ctx context.Context) (any, error)) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, apperrors.ErrIdempotencyKeyRequired
	}

	hash, err := Fingerprint(operation, request)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	existing, reserved, err := g.store.Reserve(ctx, &models.IdempotencyRecord{
		Scope:       scope,
		Key:         key,
		Operation:   operation,
		RequestHash: hash,
		Status:      models.IdempotencyInFlight,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if !reserved {
		return replay(existing, operation, hash)
	}

	result, err := fn(ctx)
	if err != nil {
		g.settleFailure(ctx, scope, key, err)
		return nil, false, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		g.settleFailure(ctx, scope, key, ErrOutcomeUnknown)
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var intentID string
	if id, ok := result.(Identified); ok {
		intentID = id.IntentRef()
	}
	// The operation already took effect; a failed write here leaves the
	// key in flight and a retry is refused rather than re-executed.
	if err := g.store.Complete(context.WithoutCancel(ctx), scope, key, intentID, raw); err != nil {
		logger.Get().Errorw("failed to complete idempotency record", "scope", scope, "key", key, "intent_id", intentID, "error", err)
	}
	return raw, false, nil
}

func (g *Guard) settleFailure(ctx context.Context, scope, key string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if IsAmbiguous(cause) {
		if err := g.store.MarkAmbiguous(ctx, scope, key, ""); err != nil {
			logger.Get().Errorw("failed to mark idempotency record ambiguous", "scope", scope, "key", key, "error", err)
		}
		return
	}
	if err := g.store.Reject(ctx, scope, key); err != nil {
		logger.Get().Warnw("failed to release idempotency key", "scope", scope, "key", key, "error", err)
	}
}

// IsAmbiguous reports whether err leaves the operation outcome undecided.
func IsAmbiguous(err error) bool {
	return errors.Is(err, apperrors.ErrOperationAmbiguous) || errors.Is(err, ErrOutcomeUnknown)
}

func replay(rec *models.IdempotencyRecord, operation, hash string) (json.RawMessage, bool, error) {
	if rec.Operation != operation || rec.RequestHash != hash {
		return nil, false, apperrors.ErrIdempotencyKeyReused
	}
	switch rec.Status {
	case models.IdempotencyCompleted:
		return rec.Response, true, nil
	case models.IdempotencyAmbiguous:
		return nil, false, apperrors.WithMessage(apperrors.ErrIdempotencyInProgress, "A request with this idempotency key is being reconciled")
	default:
		return nil, false, apperrors.ErrIdempotencyInProgress
	}
}
