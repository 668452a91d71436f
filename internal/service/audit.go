package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/akademos/academy-api/internal/models"
)

// recordAuditEntry writes an audit row. Failures are logged and swallowed so
// the primary operation outcome is never affected.
func recordAuditEntry(ctx context.Context, audits auditWriter, logger *zap.Logger, actorID, action, resource, resourceID string, values map[string]interface{}) {
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
	}
	if err := audits.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
