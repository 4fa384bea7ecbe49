// Package engine orchestrates the project intake and pre-screening flow: it
// persists the canonical project snapshot, resolves the workflow instance,
// writes the decision payload records, and records lifecycle events.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"prescreen/internal/domain"
	"prescreen/internal/normalize"
	"prescreen/internal/record"
	"prescreen/internal/store"
)

type Engine struct {
	Store        store.Gateway
	ProcessModel string
	Logger       *slog.Logger
}

func New(gw store.Gateway) Engine {
	return Engine{
		Store:        gw,
		ProcessModel: domain.ProcessModelPreScreening,
		Logger:       slog.Default(),
	}
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// SaveInput is a raw intake form submission plus its geospatial context.
type SaveInput struct {
	Form      domain.FormData
	Geo       domain.GeospatialResults
	ProjectID *int64
}

// SaveResult is the persisted snapshot and its workflow instance.
type SaveResult struct {
	Record          domain.ProjectRecord   `json:"record"`
	Instance        domain.ProcessInstance `json:"instance"`
	InstanceCreated bool                   `json:"instance_created"`
}

// SaveProjectSnapshot upserts the canonical project record, resolves (or
// creates) its pre-screening instance, and records the project-initiated
// event on first save. Writes run in that fixed order with no rollback; a
// failure mid-sequence is recovered by retrying the save, which is idempotent
// through the upsert.
func (e Engine) SaveProjectSnapshot(ctx context.Context, in SaveInput) (SaveResult, error) {
	projectID, err := resolveProjectID(in.ProjectID, in.Form)
	if err != nil {
		return SaveResult{}, err
	}
	rec := record.Build(record.BuildInput{
		Form:    in.Form,
		Geo:     in.Geo,
		KnownID: projectID,
	})
	if rec.Other != nil {
		if raw, ok := rec.Other["location_raw"]; ok {
			e.logger().Warn("location field is not structured; keeping raw value", "location", raw)
		}
	}
	stored, err := e.Store.UpsertProject(ctx, rec)
	if err != nil {
		return SaveResult{}, err
	}
	if stored.ID == nil {
		return SaveResult{}, store.Errf("save project", "store did not return a project identifier")
	}
	inst, created, err := e.ResolveOrCreate(ctx, *stored.ID, recordTitle(stored, rec))
	if err != nil {
		return SaveResult{}, err
	}
	if created {
		if err := e.CreateCaseEvent(ctx, inst.ID, domain.EventProjectInitiated, map[string]any{
			"project": *stored.ID,
		}); err != nil {
			return SaveResult{}, err
		}
	}
	return SaveResult{Record: stored, Instance: inst, InstanceCreated: created}, nil
}

// SubmitInput is a decision submission for an already-saved project.
type SubmitInput struct {
	ProjectID *int64
	Form      domain.FormData
	Geo       domain.GeospatialResults
	Checklist []domain.ChecklistItem
}

// SubmitResult carries everything a caller needs to render progress.
type SubmitResult struct {
	Record        domain.ProjectRecord           `json:"record"`
	Instance      domain.ProcessInstance         `json:"instance"`
	Records       []domain.DecisionPayloadRecord `json:"records"`
	Evaluation    Evaluation                     `json:"evaluation"`
	MissingTitles []string                       `json:"missing_titles,omitempty"`
}

// SubmitDecision rebuilds the project record, resolves the instance, writes
// the seven decision payload records, and records the pre-screening events:
// initiated always, complete only once every payload evaluates as meaningful.
func (e Engine) SubmitDecision(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	if in.ProjectID == nil {
		return SubmitResult{}, store.Errf("submit decision", "a numeric project identifier is required")
	}
	rec := record.Build(record.BuildInput{
		Form:    in.Form,
		Geo:     in.Geo,
		KnownID: in.ProjectID,
	})
	inst, _, err := e.ResolveOrCreate(ctx, *in.ProjectID, recordTitle(rec, rec))
	if err != nil {
		return SubmitResult{}, err
	}
	reg, err := e.LoadRegistry(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	missing := reg.MissingTitles(BuilderTitles())
	if len(missing) > 0 {
		e.logger().Warn("decision element catalog is missing expected titles; proceeding with fallbacks",
			"process_model", e.ProcessModel, "titles", missing)
	}
	built := BuildPayloads(PayloadContext{
		Record:    rec,
		Geo:       in.Geo,
		Checklist: in.Checklist,
		Form:      in.Form,
	}, inst.ID, reg)
	written, err := e.Store.UpsertDecisionPayloads(ctx, built)
	if err != nil {
		return SubmitResult{}, err
	}
	eval := Evaluate(written)
	if err := e.EnsureCaseEvent(ctx, inst.ID, domain.EventPreScreeningStarted, map[string]any{
		"project": *in.ProjectID,
	}); err != nil {
		return SubmitResult{}, err
	}
	if eval.IsComplete {
		if err := e.EnsureCaseEvent(ctx, inst.ID, domain.EventPreScreeningComplete, map[string]any{
			"project":   *in.ProjectID,
			"completed": eval.CompletedTitles,
		}); err != nil {
			return SubmitResult{}, err
		}
	}
	return SubmitResult{
		Record:        rec,
		Instance:      inst,
		Records:       written,
		Evaluation:    eval,
		MissingTitles: missing,
	}, nil
}

// resolveProjectID prefers the caller-supplied identity and otherwise reads a
// loose id field off the form. A present but non-numeric id is an error, not
// a silent insert.
func resolveProjectID(known *int64, form domain.FormData) (*int64, error) {
	if known != nil {
		return known, nil
	}
	raw, ok := form["id"]
	if !ok || raw == nil {
		return nil, nil
	}
	n := normalize.Number(raw)
	if n == nil {
		return nil, store.Errf("save project", "non-numeric project identifier")
	}
	id := int64(*n)
	return &id, nil
}

func recordTitle(primary, fallback domain.ProjectRecord) string {
	if primary.Title != nil && strings.TrimSpace(*primary.Title) != "" {
		return *primary.Title
	}
	if fallback.Title != nil {
		return *fallback.Title
	}
	return ""
}
