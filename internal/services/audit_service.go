package services

import (
	"context"
	"encoding/json"
	"time"

	"jadbank/internal/logger"
	"jadbank/internal/models"
	"jadbank/internal/repository"
	"jadbank/internal/uuid"
)

// auditService handles audit log recording.
type auditService struct {
	repo *repository.Repository
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(repo *repository.Repository) AuditServicer {
	return &auditService{repo: repo}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		ID:           uuid.New(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
