package repository

import (
	"context"
	"encoding/json"
	"time"

	"jadbank/internal/models"
	"jadbank/internal/store"
)

// IntentCells encodes an intent row. Legs, lock keys and the precomputed
// result are stored as JSON cells.
func IntentCells(i *models.Intent) (store.Cells, error) {
	legs, err := json.Marshal(i.Legs)
	if err != nil {
		return nil, err
	}
	keys, err := json.Marshal(i.LockKeys)
	if err != nil {
		return nil, err
	}
	return store.Cells{
		"id":              i.ID,
		"kind":            string(i.Kind),
		"user_id":         i.UserID,
		"idempotency_key": i.IdempotencyKey,
		"status":          string(i.Status),
		"legs":            string(legs),
		"lock_keys":       string(keys),
		"result":          string(i.Result),
		"error":           i.Error,
		"created_at":      formatTime(i.CreatedAt),
		"updated_at":      formatTime(i.UpdatedAt),
	}, nil
}

func decodeIntent(row store.Row) (models.Intent, bool, error) {
	c := row.Cells
	intent := models.Intent{
		Row:            models.Row{Ref: row.Ref},
		ID:             c.Get("id"),
		Kind:           models.TransactionKind(c.Get("kind")),
		UserID:         c.Get("user_id"),
		IdempotencyKey: c.Get("idempotency_key"),
		Status:         models.IntentStatus(c.Get("status")),
		Error:          c.Get("error"),
	}
	if err := json.Unmarshal([]byte(c.Get("legs")), &intent.Legs); err != nil {
		return models.Intent{}, false, err
	}
	if raw := c.Get("lock_keys"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &intent.LockKeys); err != nil {
			return models.Intent{}, false, err
		}
	}
	if raw := c.Get("result"); raw != "" {
		intent.Result = json.RawMessage(raw)
	}
	var err error
	if intent.CreatedAt, err = parseTime(c.Get("created_at")); err != nil {
		return models.Intent{}, false, err
	}
	if intent.UpdatedAt, err = parseTime(c.Get("updated_at")); err != nil {
		return models.Intent{}, false, err
	}
	return intent, true, nil
}

// Intents returns every intent in creation order.
func (r *Repository) Intents(ctx context.Context) ([]models.Intent, error) {
	return readAll(ctx, r.store, TableIntents, decodeIntent)
}

// OpenIntents returns intents the reconciler still has to resolve.
func (r *Repository) OpenIntents(ctx context.Context) ([]models.Intent, error) {
	all, err := r.Intents(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Intent
	for _, i := range all {
		if !i.Status.IsTerminal() {
			out = append(out, i)
		}
	}
	return out, nil
}

// FindIntent returns the intent with the given id.
func (r *Repository) FindIntent(ctx context.Context, id string) (*models.Intent, bool, error) {
	all, err := r.Intents(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], true, nil
		}
	}
	return nil, false, nil
}

// AppendIntent stores a new intent and records its ref.
func (r *Repository) AppendIntent(ctx context.Context, i *models.Intent) error {
	cells, err := IntentCells(i)
	if err != nil {
		return err
	}
	row, err := r.store.AppendRow(ctx, TableIntents, cells)
	if err != nil {
		return err
	}
	i.Ref = row.Ref
	return nil
}

// SetIntentStatus moves an intent to status, recording reason when set.
func (r *Repository) SetIntentStatus(ctx context.Context, i *models.Intent, status models.IntentStatus, reason string) error {
	now := time.Now().UTC()
	if reason != "" {
		if err := r.store.UpdateCell(ctx, TableIntents, i.Ref, "error", reason); err != nil {
			return err
		}
		i.Error = reason
	}
	if err := r.store.UpdateCell(ctx, TableIntents, i.Ref, "status", string(status)); err != nil {
		return err
	}
	i.Status = status
	_ = r.store.UpdateCell(ctx, TableIntents, i.Ref, "updated_at", formatTime(now))
	i.UpdatedAt = now
	return nil
}

func decodeFlag(row store.Row) (models.AccountFlag, bool, error) {
	c := row.Cells
	created, err := parseTime(c.Get("created_at"))
	if err != nil {
		return models.AccountFlag{}, false, err
	}
	cleared, err := parseOptionalTime(c.Get("cleared_at"))
	if err != nil {
		return models.AccountFlag{}, false, err
	}
	return models.AccountFlag{
		Row:           models.Row{Ref: row.Ref},
		ID:            c.Get("id"),
		AccountNumber: c.Get("account_number"),
		IntentID:      c.Get("intent_id"),
		Reason:        c.Get("reason"),
		Status:        models.FlagStatus(c.Get("status")),
		CreatedAt:     created,
		ClearedAt:     cleared,
	}, true, nil
}

// Flags returns every account flag.
func (r *Repository) Flags(ctx context.Context) ([]models.AccountFlag, error) {
	return readAll(ctx, r.store, TableFlags, decodeFlag)
}

// OpenFlags returns flags that still block their account.
func (r *Repository) OpenFlags(ctx context.Context) ([]models.AccountFlag, error) {
	all, err := r.Flags(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.AccountFlag
	for _, f := range all {
		if f.Status == models.FlagStatusOpen {
			out = append(out, f)
		}
	}
	return out, nil
}

// AppendFlag raises a flag on an account.
func (r *Repository) AppendFlag(ctx context.Context, f *models.AccountFlag) error {
	row, err := r.store.AppendRow(ctx, TableFlags, store.Cells{
		"id":             f.ID,
		"account_number": f.AccountNumber,
		"intent_id":      f.IntentID,
		"reason":         f.Reason,
		"status":         string(f.Status),
		"created_at":     formatTime(f.CreatedAt),
	})
	if err != nil {
		return err
	}
	f.Ref = row.Ref
	return nil
}

// ClearFlag marks a flag as cleared.
func (r *Repository) ClearFlag(ctx context.Context, f *models.AccountFlag) error {
	now := time.Now().UTC()
	if err := r.store.UpdateCell(ctx, TableFlags, f.Ref, "status", string(models.FlagStatusCleared)); err != nil {
		return err
	}
	f.Status = models.FlagStatusCleared
	f.ClearedAt = &now
	return r.store.UpdateCell(ctx, TableFlags, f.Ref, "cleared_at", formatTime(now))
}

func decodeIdempotency(row store.Row) (models.IdempotencyRecord, bool, error) {
	c := row.Cells
	rec := models.IdempotencyRecord{
		Row:         models.Row{Ref: row.Ref},
		Scope:       c.Get("scope"),
		Key:         c.Get("key"),
		Operation:   c.Get("operation"),
		RequestHash: c.Get("request_hash"),
		Status:      models.IdempotencyStatus(c.Get("status")),
		IntentID:    c.Get("intent_id"),
	}
	if raw := c.Get("response"); raw != "" {
		rec.Response = json.RawMessage(raw)
	}
	var err error
	if rec.CreatedAt, err = parseTime(c.Get("created_at")); err != nil {
		return models.IdempotencyRecord{}, false, err
	}
	if rec.UpdatedAt, err = parseTime(c.Get("updated_at")); err != nil {
		return models.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

// FindIdempotency returns the record for scope and key.
func (r *Repository) FindIdempotency(ctx context.Context, scope, key string) (*models.IdempotencyRecord, bool, error) {
	all, err := readAll(ctx, r.store, TableIdempotency, decodeIdempotency)
	if err != nil {
		return nil, false, err
	}
	for i := range all {
		if all[i].Scope == scope && all[i].Key == key {
			return &all[i], true, nil
		}
	}
	return nil, false, nil
}

// AppendIdempotency stores a new record and records its ref.
func (r *Repository) AppendIdempotency(ctx context.Context, rec *models.IdempotencyRecord) error {
	row, err := r.store.AppendRow(ctx, TableIdempotency, store.Cells{
		"scope":        rec.Scope,
		"key":          rec.Key,
		"operation":    rec.Operation,
		"request_hash": rec.RequestHash,
		"status":       string(rec.Status),
		"response":     string(rec.Response),
		"intent_id":    rec.IntentID,
		"created_at":   formatTime(rec.CreatedAt),
		"updated_at":   formatTime(rec.UpdatedAt),
	})
	if err != nil {
		return err
	}
	rec.Ref = row.Ref
	return nil
}

// UpdateIdempotency rewrites the mutable cells of an existing record.
// The status cell is written last so a reader never sees a completed
// status without its response.
func (r *Repository) UpdateIdempotency(ctx context.Context, rec *models.IdempotencyRecord) error {
	updates := []struct{ column, value string }{
		{"request_hash", rec.RequestHash},
		{"operation", rec.Operation},
		{"response", string(rec.Response)},
		{"intent_id", rec.IntentID},
		{"updated_at", formatTime(rec.UpdatedAt)},
		{"status", string(rec.Status)},
	}
	for _, u := range updates {
		if err := r.store.UpdateCell(ctx, TableIdempotency, rec.Ref, u.column, u.value); err != nil {
			return err
		}
	}
	return nil
}

// AppendAudit stores an audit log entry.
func (r *Repository) AppendAudit(ctx context.Context, a *models.AuditLog) error {
	_, err := r.store.AppendRow(ctx, TableAuditLogs, store.Cells{
		"id":            a.ID,
		"user_id":       a.UserID,
		"action":        a.Action,
		"resource_type": a.ResourceType,
		"resource_id":   a.ResourceID,
		"ip_address":    a.IPAddress,
		"changes":       a.Changes,
		"created_at":    formatTime(a.CreatedAt),
	})
	return err
}

// AuditLogs returns every audit entry.
func (r *Repository) AuditLogs(ctx context.Context) ([]models.AuditLog, error) {
	return readAll(ctx, r.store, TableAuditLogs, func(row store.Row) (models.AuditLog, bool, error) {
		c := row.Cells
		created, err := parseTime(c.Get("created_at"))
		if err != nil {
			return models.AuditLog{}, false, err
		}
		return models.AuditLog{
			ID:           c.Get("id"),
			UserID:       c.Get("user_id"),
			Action:       c.Get("action"),
			ResourceType: c.Get("resource_type"),
			ResourceID:   c.Get("resource_id"),
			IPAddress:    c.Get("ip_address"),
			Changes:      c.Get("changes"),
			CreatedAt:    created,
		}, true, nil
	})
}
