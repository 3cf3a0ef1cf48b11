package testutil

import (
	"context"
	"sync"

	"jadbank/internal/store"
)

// Call describes one store call seen by a FaultyStore.
type Call struct {
	Method string // "read", "append" or "update"
	Table  string
	Column string
	Value  string
}

// Fault makes matching calls fail. When Apply is set the call reaches the
// wrapped store first, which models a write that landed but whose
// acknowledgement was lost.
type Fault struct {
	Match func(Call) bool
	Err   error
	Apply bool
	// Times limits how often the fault fires; zero means always.
	Times int
}

// FaultyStore wraps a RowStore and injects failures into matching calls.
type FaultyStore struct {
	inner store.RowStore

	mu     sync.Mutex
	faults []*Fault
	calls  []Call
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner store.RowStore) *FaultyStore {
	return &FaultyStore{inner: inner}
}

// Inject adds a fault.
func (f *FaultyStore) Inject(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &fault)
}

// Heal removes every fault.
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Calls returns every call seen so far.
func (f *FaultyStore) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// OnUpdate matches cell updates of table.column.
func OnUpdate(table, column string) func(Call) bool {
	return func(c Call) bool {
		return c.Method == "update" && c.Table == table && c.Column == column
	}
}

// OnUpdateValue matches an update writing value to table.column.
func OnUpdateValue(table, column, value string) func(Call) bool {
	return func(c Call) bool {
		return c.Method == "update" && c.Table == table && c.Column == column && c.Value == value
	}
}

// OnAppend matches appends to table.
func OnAppend(table string) func(Call) bool {
	return func(c Call) bool {
		return c.Method == "append" && c.Table == table
	}
}

// OnRead matches reads of table.
func OnRead(table string) func(Call) bool {
	return func(c Call) bool {
		return c.Method == "read" && c.Table == table
	}
}

func (f *FaultyStore) check(c Call) (*Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	for i, fault := range f.faults {
		if !fault.Match(c) {
			continue
		}
		if fault.Times > 0 {
			fault.Times--
			if fault.Times == 0 {
				f.faults = append(f.faults[:i], f.faults[i+1:]...)
			}
		}
		return fault, true
	}
	return nil, false
}

// ReadRows implements store.RowStore.
func (f *FaultyStore) ReadRows(ctx context.Context, table string) ([]store.Row, error) {
	if fault, ok := f.check(Call{Method: "read", Table: table}); ok {
		return nil, fault.Err
	}
	return f.inner.ReadRows(ctx, table)
}

// AppendRow implements store.RowStore.
func (f *FaultyStore) AppendRow(ctx context.Context, table string, cells store.Cells) (store.Row, error) {
	fault, ok := f.check(Call{Method: "append", Table: table})
	if !ok {
		return f.inner.AppendRow(ctx, table, cells)
	}
	if fault.Apply {
		if _, err := f.inner.AppendRow(ctx, table, cells); err != nil {
			return store.Row{}, err
		}
	}
	return store.Row{}, fault.Err
}

// UpdateCell implements store.RowStore.
func (f *FaultyStore) UpdateCell(ctx context.Context, table string, ref int, column, value string) error {
	fault, ok := f.check(Call{Method: "update", Table: table, Column: column, Value: value})
	if !ok {
		return f.inner.UpdateCell(ctx, table, ref, column, value)
	}
	if fault.Apply {
		if err := f.inner.UpdateCell(ctx, table, ref, column, value); err != nil {
			return err
		}
	}
	return fault.Err
}
