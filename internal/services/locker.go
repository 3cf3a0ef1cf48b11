package services

import (
	"context"
	"sort"
	"sync"
)

// Lock key builders.
func accountKey(number string) string { return "account:" + number }

func billKey(id string) string { return "bill:" + id }

func provisionKey(userID, currency string) string { return "provision:" + userID + ":" + currency }

// LockTable is an in-process keyed mutex. Each key is a one-slot channel so
// acquisition can be abandoned when the context ends. Idle keys are dropped.
//
// It also keeps the fence set: keys belonging to an intent whose outcome is
// unknown. Operations refuse fenced keys until reconciliation clears them.
type LockTable struct {
	mu     sync.Mutex
	slots  map[string]*slot
	fenced map[string]string
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLockTable creates an empty LockTable. The engine and the reconciler
// must share one.
func NewLockTable() *LockTable {
	return &LockTable{
		slots:  make(map[string]*slot),
		fenced: make(map[string]string),
	}
}

// normalizeKeys sorts and dedupes keys so every caller acquires in the
// same global order.
func normalizeKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Acquire locks every key in ascending order. The returned func releases
// them. On error nothing is held.
func (l *LockTable) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]string, 0, len(keys))

	for _, k := range keys {
		s := l.ref(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.unref(k)
			l.release(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *LockTable) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LockTable) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *LockTable) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[keys[i]]
		l.mu.Unlock()
		<-s.ch
		l.unref(keys[i])
	}
}

// Fence marks keys as held by the unresolved intent intentID.
func (l *LockTable) Fence(intentID string, keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.fenced[k] = intentID
	}
}

// Unfence lifts every fence raised for intentID.
func (l *LockTable) Unfence(intentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, id := range l.fenced {
		if id == intentID {
			delete(l.fenced, k)
		}
	}
}

// Fenced returns the first fenced key among keys.
func (l *LockTable) Fenced(keys ...string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		if _, ok := l.fenced[k]; ok {
			return k, true
		}
	}
	return "", false
}

// FencedIntents returns the ids of intents currently holding fences.
func (l *LockTable) FencedIntents() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, id := range l.fenced {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// size reports the number of live keys.
func (l *LockTable) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
