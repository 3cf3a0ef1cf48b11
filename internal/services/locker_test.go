package services

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLockTable(t *testing.T) {
	t.Run("serializes_holders_of_a_key", func(t *testing.T) {
		locks := NewLockTable()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			maxSeen int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locks.Acquire(context.Background(), "account:A")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				release()
			}()
		}
		wg.Wait()
		if maxSeen != 1 {
			t.Errorf("expected one holder at a time, saw %d", maxSeen)
		}
		if n := locks.size(); n != 0 {
			t.Errorf("expected idle keys dropped, %d remain", n)
		}
	})

	t.Run("opposite_orders_do_not_deadlock", func(t *testing.T) {
		locks := NewLockTable()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				release, err := locks.Acquire(context.Background(), "account:A", "account:B")
				if err == nil {
					release()
				}
			}()
			go func() {
				defer wg.Done()
				release, err := locks.Acquire(context.Background(), "account:B", "account:A")
				if err == nil {
					release()
				}
			}()
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("lock acquisition deadlocked")
		}
	})

	t.Run("gives_up_when_context_ends", func(t *testing.T) {
		locks := NewLockTable()
		release, err := locks.Acquire(context.Background(), "account:A")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := locks.Acquire(ctx, "account:B", "account:A"); err == nil {
			t.Fatal("expected acquisition to fail")
		}

		// account:B must not stay held by the failed attempt.
		other, err := locks.Acquire(context.Background(), "account:B")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		other()
		release()
		release()
		if n := locks.size(); n != 0 {
			t.Errorf("expected no live keys, %d remain", n)
		}
	})

	t.Run("duplicate_keys_are_taken_once", func(t *testing.T) {
		locks := NewLockTable()
		release, err := locks.Acquire(context.Background(), "account:A", "account:A")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		release()
	})
}

func TestFences(t *testing.T) {
	locks := NewLockTable()
	locks.Fence("intent-1", "account:A", "bill:1")
	locks.Fence("intent-2", "account:C")

	if key, ok := locks.Fenced("account:B", "bill:1"); !ok || key != "bill:1" {
		t.Errorf("expected bill:1 fenced, got %q %v", key, ok)
	}
	if _, ok := locks.Fenced("account:B"); ok {
		t.Error("expected account:B free")
	}
	if got := locks.FencedIntents(); len(got) != 2 || got[0] != "intent-1" || got[1] != "intent-2" {
		t.Errorf("unexpected fenced intents %v", got)
	}

	locks.Unfence("intent-1")
	if _, ok := locks.Fenced("account:A", "bill:1"); ok {
		t.Error("expected intent-1 fences lifted")
	}
	if _, ok := locks.Fenced("account:C"); !ok {
		t.Error("expected intent-2 fence kept")
	}
}

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"b", "", "a", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}
