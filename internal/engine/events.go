package engine

import (
	"context"

	"prescreen/internal/domain"
)

// EnsureCaseEvent records an event unless one of its type already exists on
// the instance. The existence check makes retried submissions no-ops; true
// idempotency under concurrent writers would need a store-side unique key on
// (process_instance, event_type).
func (e Engine) EnsureCaseEvent(ctx context.Context, processInstanceID int64, eventType string, data map[string]any) error {
	exists, err := e.Store.CaseEventExists(ctx, processInstanceID, eventType)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return e.CreateCaseEvent(ctx, processInstanceID, eventType, data)
}

// CreateCaseEvent records an event unconditionally. Only the very first
// project-initiated event goes through here, where duplication is not a
// practical concern within a single save call.
func (e Engine) CreateCaseEvent(ctx context.Context, processInstanceID int64, eventType string, data map[string]any) error {
	return e.Store.InsertCaseEvent(ctx, domain.CaseEvent{
		ProcessInstance: processInstanceID,
		EventType:       eventType,
		Data:            stripAbsent(data),
	})
}

// stripAbsent drops nil-valued keys so absent fields never persist as nulls.
func stripAbsent(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := map[string]any{}
	for k, v := range data {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
