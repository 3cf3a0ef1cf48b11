package services

import (
	"context"
	"testing"

	"jadbank/internal/repository"
	"jadbank/internal/store"
	"jadbank/internal/testutil"
)

func TestAuditService(t *testing.T) {
	t.Run("records_entry", func(t *testing.T) {
		h := newHarness(t)
		svc := NewAuditService(h.repo)

		svc.Log(context.Background(), "alice", "TRANSFER", "transaction", "tx-1", "10.0.0.1", map[string]any{"amount": "5"})

		logs, err := h.repo.AuditLogs(context.Background())
		testutil.AssertNoError(t, err)
		if len(logs) != 1 {
			t.Fatalf("expected one audit entry, got %d", len(logs))
		}
		entry := logs[0]
		if entry.Action != "TRANSFER" || entry.ResourceID != "tx-1" || entry.IPAddress != "10.0.0.1" {
			t.Errorf("unexpected entry %+v", entry)
		}
		if entry.Changes != `{"amount":"5"}` {
			t.Errorf("unexpected changes %q", entry.Changes)
		}
	})

	t.Run("store_failure_is_swallowed", func(t *testing.T) {
		h := newHarness(t)
		h.faults.Inject(testutil.Fault{Match: testutil.OnAppend(repository.TableAuditLogs), Err: store.ErrUnavailable})

		NewAuditService(h.repo).Log(context.Background(), "alice", "PAY_BILL", "bill", "b-1", "", nil)
	})
}
