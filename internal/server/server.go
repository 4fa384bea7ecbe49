package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prescreen/internal/domain"
	"prescreen/internal/engine"
	"prescreen/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"a numeric project identifier is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the intake and pre-screening API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(newAuthMiddleware(cfg.Auth))
	hcfg := huma.DefaultConfig("Prescreen API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerDecisions(group, cfg.Engine)
	registerElements(group, cfg.Engine)

	return router, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var pe *store.PersistenceError
	if errors.As(err, &pe) {
		if pe.Status != 0 {
			return newAPIError(http.StatusBadGateway, "persistence_failed", pe.Error(), map[string]any{"status": pe.Status})
		}
		lowered := strings.ToLower(pe.Message)
		if strings.Contains(lowered, "identifier") || strings.Contains(lowered, "required") || strings.Contains(lowered, "credentials") {
			return newAPIError(http.StatusBadRequest, "bad_request", pe.Error(), nil)
		}
		return newAPIError(http.StatusBadGateway, "persistence_failed", pe.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadGateway:
		return "persistence_failed"
	default:
		return "internal_error"
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "save-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Save a project snapshot",
		Description: "Upserts the canonical project record, resolves its pre-screening instance, and records the project-initiated event on first save.",
	}, func(ctx context.Context, input *struct {
		Body SaveProjectRequest
	}) (*struct {
		Body SaveProjectResponse `json:"body"`
	}, error) {
		res, err := e.SaveProjectSnapshot(ctx, engine.SaveInput{
			Form:      input.Body.Form,
			Geo:       input.Body.Geo,
			ProjectID: input.Body.ProjectID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SaveProjectResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerDecisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-decision",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/pre-screening",
		Summary:     "Submit a pre-screening decision payload",
		Description: "Writes the fixed set of decision payload records and records the pre-screening lifecycle events.",
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		Body      SubmitDecisionRequest
	}) (*struct {
		Body SubmitDecisionResponse `json:"body"`
	}, error) {
		id := input.ProjectID
		res, err := e.SubmitDecision(ctx, engine.SubmitInput{
			ProjectID: &id,
			Form:      input.Body.Form,
			Geo:       input.Body.Geo,
			Checklist: input.Body.Checklist,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmitDecisionResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerElements(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-elements",
		Method:      http.MethodGet,
		Path:        "/pre-screening/elements",
		Summary:     "List the decision element catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ElementListResponse `json:"body"`
	}, error) {
		elements, err := e.Store.ListDecisionElements(ctx, e.ProcessModel)
		if err != nil {
			return nil, handleError(err)
		}
		if elements == nil {
			elements = []domain.DecisionElement{}
		}
		return &struct {
			Body ElementListResponse `json:"body"`
		}{Body: ElementListResponse{Items: elements}}, nil
	})
}
