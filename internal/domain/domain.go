package domain

// ProcessModelPreScreening identifies the fixed first-stage review workflow.
const ProcessModelPreScreening = "pre-screening"

// Case event types recorded against a process instance.
const (
	EventProjectInitiated     = "PROJECT_INITIATED"
	EventPreScreeningStarted  = "PRE_SCREENING_INITIATED"
	EventPreScreeningComplete = "PRE_SCREENING_COMPLETE"
)

// FormData is the raw, loosely-typed intake form submission.
type FormData map[string]any

// Contact holds the sponsor contact; only non-empty fields are kept.
type Contact struct {
	Name         *string `json:"name,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
}

// ProjectRecord is the canonical project snapshot persisted to the backend.
// Every field is either a meaningful value or absent from the marshaled row.
type ProjectRecord struct {
	ID                    *int64         `json:"id,omitempty"`
	Title                 *string        `json:"title,omitempty"`
	Description           *string        `json:"description,omitempty"`
	Sector                *string        `json:"sector,omitempty"`
	LeadAgency            *string        `json:"lead_agency,omitempty"`
	ParticipatingAgencies *string        `json:"participating_agencies,omitempty"`
	Sponsor               *string        `json:"sponsor,omitempty"`
	Funding               *string        `json:"funding,omitempty"`
	LocationText          *string        `json:"location_text,omitempty"`
	Latitude              *float64       `json:"latitude,omitempty"`
	Longitude             *float64       `json:"longitude,omitempty"`
	Location              any            `json:"location,omitempty"`
	SponsorContact        *Contact       `json:"sponsor_contact,omitempty"`
	Other                 map[string]any `json:"other,omitempty"`
}

// ProcessInstance is one running occurrence of a workflow, scoped to a project.
type ProcessInstance struct {
	ID              int64   `json:"id"`
	Description     string  `json:"description,omitempty"`
	ProcessModel    string  `json:"process_model"`
	ParentProjectID int64   `json:"parent_project_id"`
	LastUpdated     *string `json:"last_updated,omitempty"`
}

// DecisionElement is a catalog-defined checklist entry within a process model.
type DecisionElement struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// DecisionPayloadRecord carries one builder's evaluation data, keyed by
// (process_instance, decision_element). DecisionElement is absent when the
// catalog lacks the builder's title.
type DecisionPayloadRecord struct {
	ProcessInstance int64          `json:"process_instance"`
	DecisionElement *int64         `json:"decision_element,omitempty"`
	EvaluationData  map[string]any `json:"evaluation_data"`

	// Title is the builder title that produced the record; it is not part of
	// the persisted row but drives completeness reporting.
	Title string `json:"-"`
}

// CaseEvent is a timestamped lifecycle marker on a process instance.
type CaseEvent struct {
	ID              *int64         `json:"id,omitempty"`
	ProcessInstance int64          `json:"process_instance"`
	EventType       string         `json:"event_type"`
	Data            map[string]any `json:"data,omitempty"`
}

// ServiceResult is one external geospatial service's outcome.
type ServiceResult struct {
	Status  string         `json:"status,omitempty"`
	Summary any            `json:"summary,omitempty"`
	Raw     any            `json:"raw,omitempty"`
	Error   string         `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// GeospatialResults aggregates per-service outcomes from the last analysis run.
type GeospatialResults struct {
	Services map[string]ServiceResult `json:"services,omitempty"`
	LastRun  string                   `json:"last_run,omitempty"`
}

// ChecklistItem is one permitting checklist entry supplied with a submission.
type ChecklistItem struct {
	Label     string `json:"label,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Source    string `json:"source,omitempty"`
}
