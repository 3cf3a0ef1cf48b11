// Package events publishes ledger notifications for downstream consumers.
// Publishing is best effort: a failed publish is logged and never fails the
// operation that produced the event.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Topic suffixes. The full topic is "<prefix>.<suffix>".
const (
	TopicOperationCompleted = "operation.completed"
	TopicAccountFlagged     = "account.flagged"
)

// Publisher sends an event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
	Close() error
}

// OperationCompleted is emitted after an intent is committed, whether by the
// engine or by reconciliation.
type OperationCompleted struct {
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	UserID        string          `json:"user_id"`
	FromRef       string          `json:"from"`
	ToRef         string          `json:"to"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reconciled    bool            `json:"reconciled"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// AccountFlagged is the operator alert raised when reconciliation cannot
// restore an intent.
type AccountFlagged struct {
	FlagID        string    `json:"flag_id"`
	AccountNumber string    `json:"account_number"`
	IntentID      string    `json:"intent_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
