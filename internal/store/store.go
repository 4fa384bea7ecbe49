// Package store defines the persistence gateway the pre-screening core writes
// through, plus the REST client for the hosted backend. A SQLite
// implementation for local workspaces lives in internal/repo.
package store

import (
	"context"
	"fmt"
	"time"

	"prescreen/internal/domain"
)

// Gateway exposes the five backend collections with the conditional-upsert,
// filtered-query and insert semantics the orchestration relies on.
type Gateway interface {
	// UpsertProject merges the record by id and returns the stored
	// representation, including the generated id on first insert.
	UpsertProject(ctx context.Context, rec domain.ProjectRecord) (domain.ProjectRecord, error)

	// CurrentProcessInstance returns the most recent instance for
	// (parentProjectID, processModel), ordered by last_updated descending
	// (nulls last) then id descending, or nil when none exists.
	CurrentProcessInstance(ctx context.Context, parentProjectID int64, processModel string) (*domain.ProcessInstance, error)

	// InsertProcessInstance creates an instance and returns the stored row.
	InsertProcessInstance(ctx context.Context, inst domain.ProcessInstance) (domain.ProcessInstance, error)

	// CaseEventExists reports whether an event of the given type is already
	// recorded on the instance.
	CaseEventExists(ctx context.Context, processInstanceID int64, eventType string) (bool, error)

	// InsertCaseEvent records a lifecycle event.
	InsertCaseEvent(ctx context.Context, ev domain.CaseEvent) error

	// ListDecisionElements returns the element catalog for a process model.
	ListDecisionElements(ctx context.Context, processModel string) ([]domain.DecisionElement, error)

	// UpsertDecisionPayloads merges payload records by their
	// (process_instance, decision_element) key pair.
	UpsertDecisionPayloads(ctx context.Context, recs []domain.DecisionPayloadRecord) ([]domain.DecisionPayloadRecord, error)
}

// Stamp is the write context threaded into every gateway write: a constant
// source-system tag plus a clock for the two housekeeping timestamps.
type Stamp struct {
	Source string
	Now    func() time.Time
}

// Fields returns the housekeeping columns for a write issued now.
func (s Stamp) Fields() map[string]any {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	return map[string]any{
		"source_system": s.Source,
		"created_at":    ts,
		"last_updated":  ts,
	}
}

// Timestamp returns the stamped wall-clock time in the persisted format.
func (s Stamp) Timestamp() string {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// PersistenceError is the single error kind surfaced for backend failures:
// missing credentials, non-2xx responses, and responses missing an expected
// identifier.
type PersistenceError struct {
	Op      string
	Status  int
	Message string
}

func (e *PersistenceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("persistence error: %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("persistence error: %s: %s", e.Op, e.Message)
}

// Errf builds a PersistenceError without an HTTP status.
func Errf(op, format string, args ...any) *PersistenceError {
	return &PersistenceError{Op: op, Message: fmt.Sprintf(format, args...)}
}
