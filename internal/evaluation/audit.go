package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"evaluations/internal/logging"
	"evaluations/models"
)

// Сущности и действия журнала аудита
const (
	auditCampaign   = "campaign"
	auditQuestion   = "question"
	auditAssignment = "assignment"
	auditResponse   = "response"
	auditResult     = "result"
)

// audit добавляет запись в журнал в рамках той же транзакции, что и изменение.
func audit(ctx context.Context, s Store, entity, entityID, action string, details map[string]any) error {
	payload := []byte("{}")
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			logging.Log.Errorf("AUDIT: failed to marshal details for %s %s: %v", entity, entityID, err)
		} else {
			payload = b
		}
	}
	return s.AppendAudit(ctx, &models.AuditRecord{
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  string(payload),
	})
}

// AuditTrail возвращает журнал сущности в порядке записи
func (e *Engine) AuditTrail(ctx context.Context, entity, entityID string) ([]models.AuditRecord, error) {
	switch entity {
	case auditCampaign, auditQuestion, auditAssignment, auditResponse, auditResult:
	default:
		return nil, fmt.Errorf("%w: audit entity %q", ErrNotFound, entity)
	}
	return e.store.ListAudit(ctx, entity, entityID)
}
