package models

import "time"

// FlagStatus represents whether a manual-review flag is still in force
type FlagStatus string

const (
	FlagStatusOpen    FlagStatus = "open"
	FlagStatusCleared FlagStatus = "cleared"
)

// AccountFlag blocks ledger operations on an account until an operator
// clears it. Raised when reconciliation cannot restore an intent.
type AccountFlag struct {
	Row
	ID            string     `json:"id"`
	AccountNumber string     `json:"account_number"`
	IntentID      string     `json:"intent_id"`
	Reason        string     `json:"reason"`
	Status        FlagStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ClearedAt     *time.Time `json:"cleared_at,omitempty"`
}
