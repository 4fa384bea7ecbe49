// Package repo is the SQLite implementation of the persistence gateway, used
// for local workspaces and tests. It mirrors the hosted backend's semantics:
// merge upserts keyed by id, filtered queries, and insert-returning rows.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"prescreen/internal/domain"
	"prescreen/internal/store"
)

type Repo struct {
	DB    *sql.DB
	Stamp store.Stamp
}

var _ store.Gateway = Repo{}

func (r Repo) UpsertProject(ctx context.Context, rec domain.ProjectRecord) (domain.ProjectRecord, error) {
	locationJSON, err := marshalNullable(rec.Location)
	if err != nil {
		return domain.ProjectRecord{}, err
	}
	contactJSON, err := marshalNullable(rec.SponsorContact)
	if err != nil {
		return domain.ProjectRecord{}, err
	}
	otherJSON, err := marshalNullable(rec.Other)
	if err != nil {
		return domain.ProjectRecord{}, err
	}
	stamp := r.Stamp.Fields()
	args := []any{
		nullableString(rec.Title), nullableString(rec.Description), nullableString(rec.Sector),
		nullableString(rec.LeadAgency), nullableString(rec.ParticipatingAgencies),
		nullableString(rec.Sponsor), nullableString(rec.Funding), nullableString(rec.LocationText),
		nullableFloat(rec.Latitude), nullableFloat(rec.Longitude),
		locationJSON, contactJSON, otherJSON,
		stamp["source_system"], stamp["created_at"], stamp["last_updated"],
	}
	if rec.ID == nil {
		res, err := r.DB.ExecContext(ctx, `INSERT INTO project
			(title,description,sector,lead_agency,participating_agencies,sponsor,funding,
			 location_text,latitude,longitude,location_json,sponsor_contact_json,other_json,
			 source_system,created_at,last_updated)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, args...)
		if err != nil {
			return domain.ProjectRecord{}, fmt.Errorf("insert project: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.ProjectRecord{}, fmt.Errorf("insert project: %w", err)
		}
		rec.ID = &id
		return rec, nil
	}
	args = append([]any{*rec.ID}, args...)
	if _, err := r.DB.ExecContext(ctx, `INSERT INTO project
		(id,title,description,sector,lead_agency,participating_agencies,sponsor,funding,
		 location_text,latitude,longitude,location_json,sponsor_contact_json,other_json,
		 source_system,created_at,last_updated)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		 title=excluded.title, description=excluded.description, sector=excluded.sector,
		 lead_agency=excluded.lead_agency, participating_agencies=excluded.participating_agencies,
		 sponsor=excluded.sponsor, funding=excluded.funding, location_text=excluded.location_text,
		 latitude=excluded.latitude, longitude=excluded.longitude,
		 location_json=excluded.location_json, sponsor_contact_json=excluded.sponsor_contact_json,
		 other_json=excluded.other_json, source_system=excluded.source_system,
		 created_at=excluded.created_at, last_updated=excluded.last_updated`, args...); err != nil {
		return domain.ProjectRecord{}, fmt.Errorf("upsert project: %w", err)
	}
	return rec, nil
}

func (r Repo) CurrentProcessInstance(ctx context.Context, parentProjectID int64, processModel string) (*domain.ProcessInstance, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, COALESCE(description,''), process_model, parent_project_id, last_updated
		FROM process_instance
		WHERE parent_project_id=? AND process_model=?
		ORDER BY last_updated DESC NULLS LAST, id DESC
		LIMIT 1`, parentProjectID, processModel)
	var inst domain.ProcessInstance
	var lastUpdated sql.NullString
	err := row.Scan(&inst.ID, &inst.Description, &inst.ProcessModel, &inst.ParentProjectID, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query process instance: %w", err)
	}
	if lastUpdated.Valid {
		inst.LastUpdated = &lastUpdated.String
	}
	return &inst, nil
}

func (r Repo) InsertProcessInstance(ctx context.Context, inst domain.ProcessInstance) (domain.ProcessInstance, error) {
	stamp := r.Stamp.Fields()
	res, err := r.DB.ExecContext(ctx, `INSERT INTO process_instance
		(description,process_model,parent_project_id,source_system,created_at,last_updated)
		VALUES (?,?,?,?,?,?)`,
		inst.Description, inst.ProcessModel, inst.ParentProjectID,
		stamp["source_system"], stamp["created_at"], stamp["last_updated"])
	if err != nil {
		return domain.ProcessInstance{}, fmt.Errorf("insert process instance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.ProcessInstance{}, fmt.Errorf("insert process instance: %w", err)
	}
	inst.ID = id
	ts, _ := stamp["last_updated"].(string)
	inst.LastUpdated = &ts
	return inst, nil
}

func (r Repo) CaseEventExists(ctx context.Context, processInstanceID int64, eventType string) (bool, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT 1 FROM case_event WHERE process_instance=? AND event_type=? LIMIT 1`,
		processInstanceID, eventType)
	if err != nil {
		return false, fmt.Errorf("query case event: %w", err)
	}
	defer rows.Close()
	return rows.Next(), nil
}

func (r Repo) InsertCaseEvent(ctx context.Context, ev domain.CaseEvent) error {
	dataJSON, err := marshalNullable(ev.Data)
	if err != nil {
		return err
	}
	stamp := r.Stamp.Fields()
	if _, err := r.DB.ExecContext(ctx, `INSERT INTO case_event
		(process_instance,event_type,data_json,source_system,created_at,last_updated)
		VALUES (?,?,?,?,?,?)`,
		ev.ProcessInstance, ev.EventType, dataJSON,
		stamp["source_system"], stamp["created_at"], stamp["last_updated"]); err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}
	return nil
}

func (r Repo) ListDecisionElements(ctx context.Context, processModel string) ([]domain.DecisionElement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, title FROM decision_element WHERE process_model=? ORDER BY id`, processModel)
	if err != nil {
		return nil, fmt.Errorf("query decision elements: %w", err)
	}
	defer rows.Close()
	var elements []domain.DecisionElement
	for rows.Next() {
		var el domain.DecisionElement
		if err := rows.Scan(&el.ID, &el.Title); err != nil {
			return nil, fmt.Errorf("scan decision element: %w", err)
		}
		elements = append(elements, el)
	}
	return elements, rows.Err()
}

func (r Repo) UpsertDecisionPayloads(ctx context.Context, recs []domain.DecisionPayloadRecord) ([]domain.DecisionPayloadRecord, error) {
	stamp := r.Stamp.Fields()
	for _, rec := range recs {
		dataJSON, err := marshalNullable(rec.EvaluationData)
		if err != nil {
			return nil, err
		}
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO process_decision_payload
			(process_instance,decision_element,evaluation_data_json,source_system,created_at,last_updated)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(process_instance,decision_element) DO UPDATE SET
			 evaluation_data_json=excluded.evaluation_data_json,
			 source_system=excluded.source_system,
			 created_at=excluded.created_at,
			 last_updated=excluded.last_updated`,
			rec.ProcessInstance, nullableInt(rec.DecisionElement), dataJSON,
			stamp["source_system"], stamp["created_at"], stamp["last_updated"]); err != nil {
			return nil, fmt.Errorf("upsert decision payload %q: %w", rec.Title, err)
		}
	}
	return recs, nil
}

// SeedDecisionElements inserts any catalog titles missing for the process
// model. Local workspaces get the full catalog on first open.
func (r Repo) SeedDecisionElements(ctx context.Context, processModel string, titles []string) error {
	existing, err := r.ListDecisionElements(ctx, processModel)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for _, el := range existing {
		have[el.Title] = true
	}
	for _, title := range titles {
		if have[title] {
			continue
		}
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO decision_element(process_model,title) VALUES (?,?)`,
			processModel, title); err != nil {
			return fmt.Errorf("seed decision element %q: %w", title, err)
		}
	}
	return nil
}

// CountCaseEvents reports how many events of a type exist for an instance.
func (r Repo) CountCaseEvents(ctx context.Context, processInstanceID int64, eventType string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM case_event WHERE process_instance=? AND event_type=?`,
		processInstanceID, eventType).Scan(&count)
	return count, err
}

func marshalNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case *domain.Contact:
		if t == nil {
			return nil, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal column: %w", err)
	}
	return string(data), nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
