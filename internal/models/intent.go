package models

import (
	"encoding/json"
	"time"
)

// IntentStatus tracks an operation through Mutating, Logged and the
// compensation states.
type IntentStatus string

const (
	IntentStatusPending             IntentStatus = "pending"
	IntentStatusCommitted           IntentStatus = "committed"
	IntentStatusCompensationPending IntentStatus = "compensation_pending"
	IntentStatusCompensated         IntentStatus = "compensated"
	IntentStatusAbandoned           IntentStatus = "abandoned"
	IntentStatusInconsistent        IntentStatus = "inconsistent"
)

// IsTerminal reports whether the reconciler can ignore intents in this status.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentStatusCommitted, IntentStatusCompensated, IntentStatusAbandoned, IntentStatusInconsistent:
		return true
	}
	return false
}

// LegKind is the kind of store write a leg performs.
type LegKind string

const (
	// LegBalance writes an absolute balance to an account row.
	LegBalance LegKind = "balance"
	// LegCell writes an absolute value to any cell.
	LegCell LegKind = "cell"
	// LegAppend appends a new row identified by its id cell.
	LegAppend LegKind = "append"
)

// Leg is one store write of an intent. Balance and cell legs carry the
// value expected before and after the write so that replaying or reversing
// them is idempotent. Append legs carry the full row; VoidColumn/VoidValue
// say how to neutralise the row if the operation is reversed.
type Leg struct {
	Kind       LegKind           `json:"kind"`
	Table      string            `json:"table"`
	Ref        int               `json:"ref,omitempty"`
	Account    string            `json:"account,omitempty"`
	Column     string            `json:"column,omitempty"`
	Before     string            `json:"before,omitempty"`
	After      string            `json:"after,omitempty"`
	RowID      string            `json:"row_id,omitempty"`
	Cells      map[string]string `json:"cells,omitempty"`
	VoidColumn string            `json:"void_column,omitempty"`
	VoidValue  string            `json:"void_value,omitempty"`
}

// Intent is the durable record of a multi-write operation, written before
// any leg is applied. Its ID doubles as the transaction log id.
type Intent struct {
	Row
	ID             string          `json:"id"`
	Kind           TransactionKind `json:"kind"`
	UserID         string          `json:"user_id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Status         IntentStatus    `json:"status"`
	Legs           []Leg           `json:"legs"`
	LockKeys       []string        `json:"lock_keys"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Accounts returns the account numbers touched by balance legs.
func (i *Intent) Accounts() []string {
	var out []string
	seen := map[string]bool{}
	for _, leg := range i.Legs {
		if leg.Kind == LegBalance && !seen[leg.Account] {
			seen[leg.Account] = true
			out = append(out, leg.Account)
		}
	}
	return out
}
