package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jadbank/internal/events"
	"jadbank/internal/idempotency"
	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/uuid"
)

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	Examined      int       `json:"examined"`
	Committed     int       `json:"committed"`
	RolledForward int       `json:"rolled_forward"`
	Reversed      int       `json:"reversed"`
	Abandoned     int       `json:"abandoned"`
	Inconsistent  int       `json:"inconsistent"`
	Errors        int       `json:"errors"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCommitted
	outcomeRolledForward
	outcomeReversed
	outcomeAbandoned
	outcomeInconsistent
)

// Reconciler resolves intents left non-terminal by a crash, a timeout or a
// failed compensation.
type Reconciler struct {
	repo      *repository.Repository
	locks     *LockTable
	idem      idempotency.Store
	publisher events.Publisher
	prefix    string
	trigger   chan struct{}

	mu        sync.Mutex
	// suspended maps intent ids to the idempotency key they reserved, for
	// intents whose row may never have reached the store.
	suspended map[string]suspendedKey
}

type suspendedKey struct {
	scope, key string
}

// NewReconciler creates a Reconciler sharing locks with the ledger engine.
// idem may be nil when idempotency records live elsewhere.
func NewReconciler(repo *repository.Repository, locks *LockTable, idem idempotency.Store, publisher events.Publisher, topicPrefix string) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Reconciler{
		repo:      repo,
		locks:     locks,
		idem:      idem,
		publisher: publisher,
		prefix:    topicPrefix,
		trigger:   make(chan struct{}, 1),
		suspended: make(map[string]suspendedKey),
	}
}

// Trigger asks a running loop to sweep soon. It never blocks.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run sweeps every interval and whenever triggered, until ctx ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.trigger:
		}
		if _, err := r.Sweep(ctx); err != nil {
			logger.Get().Warnw("reconcile sweep failed", "error", err)
		}
	}
}

// Sweep resolves every non-terminal intent once.
func (r *Reconciler) Sweep(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: time.Now().UTC()}
	log := logger.Get()

	// Taken before reading intents so a fence raised after the read is
	// never lifted by this sweep.
	fenced := r.locks.FencedIntents()

	open, err := r.repo.OpenIntents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read open intents: %w", err)
	}

	openIDs := make(map[string]bool, len(open))
	for _, intent := range open {
		openIDs[intent.ID] = true
		report.Examined++

		result, err := r.reconcile(ctx, intent.ID, intent.LockKeys)
		if err != nil {
			report.Errors++
			log.Warnw("failed to reconcile intent", "intent_id", intent.ID, "error", err)
			continue
		}
		switch result {
		case outcomeCommitted:
			report.Committed++
		case outcomeRolledForward:
			report.RolledForward++
		case outcomeReversed:
			report.Reversed++
		case outcomeAbandoned:
			report.Abandoned++
		case outcomeInconsistent:
			report.Inconsistent++
		}
	}

	// Fences whose intent never reached the store, or is already terminal.
	for _, id := range fenced {
		if openIDs[id] {
			continue
		}
		if err := r.settleUnopened(ctx, id); err != nil {
			report.Errors++
			log.Warnw("failed to settle suspended intent", "intent_id", id, "error", err)
		}
	}

	report.FinishedAt = time.Now().UTC()
	if report.Examined > 0 {
		log.Infow("reconcile sweep finished",
			"examined", report.Examined,
			"committed", report.Committed,
			"rolled_forward", report.RolledForward,
			"reversed", report.Reversed,
			"abandoned", report.Abandoned,
			"inconsistent", report.Inconsistent,
			"errors", report.Errors,
		)
	}
	return report, nil
}

// reconcile resolves one intent under its locks.
func (r *Reconciler) reconcile(ctx context.Context, id string, keys []string) (outcome, error) {
	release, err := r.locks.Acquire(ctx, keys...)
	if err != nil {
		return outcomeSkipped, err
	}
	defer release()

	// The engine may have finished it while we waited.
	intent, found, err := r.repo.FindIntent(ctx, id)
	if err != nil {
		return outcomeSkipped, err
	}
	if !found {
		return outcomeSkipped, fmt.Errorf("intent %s disappeared", id)
	}
	if intent.Status.IsTerminal() {
		r.forget(intent.ID)
		r.locks.Unfence(intent.ID)
		return outcomeSkipped, nil
	}

	ctx = context.WithoutCancel(ctx)
	result, err := r.resolve(ctx, intent)
	if err != nil {
		return outcomeSkipped, err
	}

	r.settleIdempotency(ctx, intent, result)
	r.forget(intent.ID)
	r.locks.Unfence(intent.ID)
	return result, nil
}

// settleUnopened handles a fenced intent that was not open when the sweep
// read the intents table. An intent that never landed applied no leg, so
// its key is released; one that went terminal has its key bound to that
// outcome.
func (r *Reconciler) settleUnopened(ctx context.Context, id string) error {
	intent, found, err := r.repo.FindIntent(ctx, id)
	if err != nil {
		return err
	}
	if found && !intent.Status.IsTerminal() {
		// Landed after the read; the next sweep resolves it.
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	if found {
		r.settleIdempotency(ctx, intent, outcomeOf(intent.Status))
	} else if ref, ok := r.trackedKey(id); ok && r.idem != nil {
		if err := r.idem.Reject(ctx, ref.scope, ref.key); err != nil {
			return err
		}
		logger.Get().Infow("released key of unwritten intent", "intent_id", id, "key", ref.key)
	}

	r.forget(id)
	r.locks.Unfence(id)
	return nil
}

// track remembers the idempotency key of a suspended intent.
func (r *Reconciler) track(intent *models.Intent) {
	if intent.IdempotencyKey == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspended[intent.ID] = suspendedKey{scope: intent.UserID, key: intent.IdempotencyKey}
}

func (r *Reconciler) trackedKey(id string) (suspendedKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.suspended[id]
	return ref, ok
}

func (r *Reconciler) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.suspended, id)
}

func outcomeOf(status models.IntentStatus) outcome {
	switch status {
	case models.IntentStatusCommitted:
		return outcomeCommitted
	case models.IntentStatusCompensated:
		return outcomeReversed
	case models.IntentStatusAbandoned:
		return outcomeAbandoned
	case models.IntentStatusInconsistent:
		return outcomeInconsistent
	}
	return outcomeSkipped
}

func (r *Reconciler) resolve(ctx context.Context, intent *models.Intent) (outcome, error) {
	states := make([]legState, len(intent.Legs))
	for i, leg := range intent.Legs {
		st, err := inspectLeg(ctx, r.repo, leg)
		if err != nil {
			return outcomeSkipped, err
		}
		states[i] = st
	}

	if intent.Status == models.IntentStatusCompensationPending {
		return r.reverse(ctx, intent, states)
	}
	return r.rollForward(ctx, intent, states)
}

func (r *Reconciler) rollForward(ctx context.Context, intent *models.Intent, states []legState) (outcome, error) {
	last := len(states) - 1
	// The log entry is written last; once it exists every earlier leg was
	// acknowledged and later balance changes belong to other operations.
	if last >= 0 && isLogLeg(intent.Legs[last]) && states[last] == legApplied {
		if err := r.repo.SetIntentStatus(ctx, intent, models.IntentStatusCommitted, ""); err != nil {
			return outcomeSkipped, err
		}
		publishCompleted(ctx, r.publisher, r.prefix, intent, true)
		return outcomeCommitted, nil
	}

	applied := 0
	for i, st := range states {
		switch st {
		case legApplied:
			applied++
		case legUnknown, legVoided:
			return r.markInconsistent(ctx, intent, fmt.Sprintf("leg %d is %s", i, st))
		}
	}

	if applied == 0 {
		if err := r.repo.SetIntentStatus(ctx, intent, models.IntentStatusAbandoned, "no leg applied"); err != nil {
			return outcomeSkipped, err
		}
		logger.Get().Infow("intent abandoned", "intent_id", intent.ID, "kind", intent.Kind)
		return outcomeAbandoned, nil
	}

	for i, leg := range intent.Legs {
		if states[i] == legApplied {
			continue
		}
		if err := applyLeg(ctx, r.repo, leg); err != nil {
			return outcomeSkipped, err
		}
	}
	if err := r.repo.SetIntentStatus(ctx, intent, models.IntentStatusCommitted, ""); err != nil {
		return outcomeSkipped, err
	}
	logger.Get().Infow("intent rolled forward", "intent_id", intent.ID, "kind", intent.Kind, "legs_applied_before", applied)
	publishCompleted(ctx, r.publisher, r.prefix, intent, true)
	return outcomeRolledForward, nil
}

func (r *Reconciler) reverse(ctx context.Context, intent *models.Intent, states []legState) (outcome, error) {
	for i, st := range states {
		if st == legUnknown {
			return r.markInconsistent(ctx, intent, fmt.Sprintf("leg %d is %s", i, st))
		}
	}

	for j := len(intent.Legs) - 1; j >= 0; j-- {
		if states[j] != legApplied {
			continue
		}
		if err := revertLeg(ctx, r.repo, intent.Legs[j]); err != nil {
			return outcomeSkipped, err
		}
	}
	if err := r.repo.SetIntentStatus(ctx, intent, models.IntentStatusCompensated, ""); err != nil {
		return outcomeSkipped, err
	}
	appendFailedEntry(ctx, r.repo, intent)
	logger.Get().Infow("intent reversed", "intent_id", intent.ID, "kind", intent.Kind)
	return outcomeReversed, nil
}

// markInconsistent flags every account the intent touches and raises the
// operator alert.
func (r *Reconciler) markInconsistent(ctx context.Context, intent *models.Intent, reason string) (outcome, error) {
	log := logger.Get()
	if err := r.repo.SetIntentStatus(ctx, intent, models.IntentStatusInconsistent, reason); err != nil {
		return outcomeSkipped, err
	}

	now := time.Now().UTC()
	for _, number := range intent.Accounts() {
		flag := &models.AccountFlag{
			ID:            uuid.New(),
			AccountNumber: number,
			IntentID:      intent.ID,
			Reason:        reason,
			Status:        models.FlagStatusOpen,
			CreatedAt:     now,
		}
		if err := r.repo.AppendFlag(ctx, flag); err != nil {
			log.Errorw("failed to flag account", "account_number", number, "intent_id", intent.ID, "error", err)
			continue
		}
		event := events.AccountFlagged{
			FlagID:        flag.ID,
			AccountNumber: number,
			IntentID:      intent.ID,
			Reason:        reason,
			OccurredAt:    now,
		}
		if err := r.publisher.Publish(ctx, events.TopicName(r.prefix, events.TopicAccountFlagged), number, event); err != nil {
			log.Warnw("failed to publish event", "topic", events.TopicAccountFlagged, "intent_id", intent.ID, "error", err)
		}
	}

	log.Errorw("operator alert: intent is inconsistent, accounts flagged for manual review",
		"intent_id", intent.ID,
		"kind", intent.Kind,
		"user_id", intent.UserID,
		"accounts", intent.Accounts(),
		"reason", reason,
	)
	return outcomeInconsistent, nil
}

// settleIdempotency binds the caller's key to the reconciled outcome so a
// retry replays it or runs afresh.
func (r *Reconciler) settleIdempotency(ctx context.Context, intent *models.Intent, result outcome) {
	if r.idem == nil || intent.IdempotencyKey == "" {
		return
	}

	var err error
	switch result {
	case outcomeCommitted, outcomeRolledForward:
		err = r.idem.Complete(ctx, intent.UserID, intent.IdempotencyKey, intent.ID, intent.Result)
	case outcomeReversed, outcomeAbandoned:
		err = r.idem.Reject(ctx, intent.UserID, intent.IdempotencyKey)
	case outcomeInconsistent:
		err = r.idem.MarkAmbiguous(ctx, intent.UserID, intent.IdempotencyKey, intent.ID)
	}
	if err != nil {
		logger.Get().Warnw("failed to settle idempotency record", "intent_id", intent.ID, "key", intent.IdempotencyKey, "error", err)
	}
}
