package server

import (
	"prescreen/internal/domain"
	"prescreen/internal/engine"
)

// Request payloads

type SaveProjectRequest struct {
	ProjectID *int64                   `json:"project_id,omitempty"`
	Form      domain.FormData          `json:"form"`
	Geo       domain.GeospatialResults `json:"geospatial,omitempty"`
}

type SubmitDecisionRequest struct {
	Form      domain.FormData          `json:"form"`
	Geo       domain.GeospatialResults `json:"geospatial,omitempty"`
	Checklist []domain.ChecklistItem   `json:"checklist,omitempty"`
}

// Response payloads

type SaveProjectResponse = engine.SaveResult

type SubmitDecisionResponse = engine.SubmitResult

type ElementListResponse struct {
	Items []domain.DecisionElement `json:"items"`
}
