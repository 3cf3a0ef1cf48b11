package models

import (
	"encoding/json"
	"time"
)

// IdempotencyStatus represents the state of a reserved idempotency key
type IdempotencyStatus string

const (
	IdempotencyInFlight  IdempotencyStatus = "in_flight"
	IdempotencyCompleted IdempotencyStatus = "completed"
	IdempotencyRejected  IdempotencyStatus = "rejected"
	IdempotencyAmbiguous IdempotencyStatus = "ambiguous"
)

// IdempotencyRecord binds a caller-supplied key, scoped to a user, to the
// request it first arrived with and, once finished, the response it produced.
type IdempotencyRecord struct {
	Row
	Scope       string            `json:"scope"`
	Key         string            `json:"key"`
	Operation   string            `json:"operation"`
	RequestHash string            `json:"request_hash"`
	Status      IdempotencyStatus `json:"status"`
	Response    json.RawMessage   `json:"response,omitempty"`
	IntentID    string            `json:"intent_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
