package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"jadbank/internal/events"
	"jadbank/internal/idempotency"
	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/ratetable"
	"jadbank/internal/repository"
	"jadbank/internal/testutil"
)

func init() {
	logger.Init("test")
}

// harness wires the engine over a fault-injecting in-memory store.
type harness struct {
	repo       *repository.Repository
	faults     *testutil.FaultyStore
	locks      *LockTable
	idem       idempotency.Store
	reconciler *Reconciler
	ledger     LedgerServicer
	events     *events.Recorder
	keys       int
}

func testOptions() LedgerOptions {
	return LedgerOptions{
		LoanAnnualRate:    decimal.RequireFromString("12.5"),
		LoanMaxTermMonths: 360,
		AmountScale:       8,
		Rates: ratetable.Options{
			Policy:    ratetable.PolicyWarn,
			Tolerance: decimal.RequireFromString("0.01"),
		},
		TopicPrefix: "ledger",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, faults := testutil.SetupFaultyStore(t)
	testutil.SeedRates(t, repo)

	h := &harness{
		repo:   repo,
		faults: faults,
		locks:  NewLockTable(),
		idem:   idempotency.NewRowStore(repo),
		events: &events.Recorder{},
	}
	h.reconciler = NewReconciler(repo, h.locks, h.idem, h.events, "ledger")
	h.ledger = NewLedgerService(repo, h.locks, idempotency.NewGuard(h.idem), h.reconciler, h.events, testOptions())
	return h
}

// restart simulates a process restart: a fresh lock table and reconciler
// over the same store.
func (h *harness) restart() *Reconciler {
	h.locks = NewLockTable()
	h.reconciler = NewReconciler(h.repo, h.locks, h.idem, h.events, "ledger")
	h.ledger = NewLedgerService(h.repo, h.locks, idempotency.NewGuard(h.idem), h.reconciler, h.events, testOptions())
	return h.reconciler
}

func (h *harness) key() string {
	h.keys++
	return fmt.Sprintf("key-%d", h.keys)
}

func (h *harness) transfer(from, to, amount string) (*TransferResult, error) {
	return h.ledger.Transfer(context.Background(), "alice", h.key(), TransferRequest{
		FromAccount: from,
		ToAccount:   to,
		Amount:      decimal.RequireFromString(amount),
	})
}

func (h *harness) intents(t *testing.T) []models.Intent {
	t.Helper()
	intents, err := h.repo.Intents(context.Background())
	testutil.AssertNoError(t, err)
	return intents
}

func (h *harness) transactions(t *testing.T) []models.Transaction {
	t.Helper()
	txs, err := h.repo.Transactions(context.Background())
	testutil.AssertNoError(t, err)
	return txs
}

func (h *harness) sweep(t *testing.T) *ReconcileReport {
	t.Helper()
	report, err := h.reconciler.Sweep(context.Background())
	testutil.AssertNoError(t, err)
	return report
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
