package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prescreen/internal/domain"
)

func fixedStamp() Stamp {
	return Stamp{
		Source: "test",
		Now:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

type capturedRequest struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	rows   []map[string]any
}

// newTestClient spins up a backend stub that records the request and replies
// with the given status and body.
func newTestClient(t *testing.T, status int, body string) (*RESTClient, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.Query()
		captured.header = r.Header.Clone()
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&captured.rows)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	client, err := NewREST(srv.URL, "secret", fixedStamp())
	require.NoError(t, err)
	return client, captured
}

func TestNewRESTRequiresCredentials(t *testing.T) {
	_, err := NewREST("", "key", fixedStamp())
	require.Error(t, err)
	_, err = NewREST("https://api.example.com", "  ", fixedStamp())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing backend credentials")
}

func TestUpsertProjectRequestShape(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `[{"id": 42, "title": "Bridge Repair"}]`)
	title := "Bridge Repair"
	stored, err := client.UpsertProject(context.Background(), domain.ProjectRecord{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/project", captured.path)
	assert.Equal(t, []string{"id"}, captured.query["on_conflict"])
	assert.Equal(t, "resolution=merge-duplicates,return=representation", captured.header.Get("Prefer"))
	assert.Equal(t, "secret", captured.header.Get("X-Api-Key"))

	require.Len(t, captured.rows, 1)
	row := captured.rows[0]
	assert.Equal(t, "Bridge Repair", row["title"])
	assert.Equal(t, "test", row["source_system"])
	assert.Equal(t, "2024-06-01T12:00:00Z", row["created_at"])
	assert.Equal(t, "2024-06-01T12:00:00Z", row["last_updated"])
	_, hasID := row["id"]
	assert.False(t, hasID, "absent id must not serialize")

	require.NotNil(t, stored.ID)
	assert.Equal(t, int64(42), *stored.ID)
}

func TestCurrentProcessInstanceQuery(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK,
		`[{"id": 7, "description": "Bridge Repair Pre-Screening", "process_model": "pre-screening", "parent_project_id": 42}]`)
	inst, err := client.CurrentProcessInstance(context.Background(), 42, "pre-screening")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, "/process_instance", captured.path)
	assert.Equal(t, []string{"eq.42"}, captured.query["parent_project_id"])
	assert.Equal(t, []string{"eq.pre-screening"}, captured.query["process_model"])
	assert.Equal(t, []string{"last_updated.desc.nullslast,id.desc"}, captured.query["order"])
	assert.Equal(t, []string{"1"}, captured.query["limit"])

	require.NotNil(t, inst)
	assert.Equal(t, int64(7), inst.ID)
}

func TestCurrentProcessInstanceNone(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `[]`)
	inst, err := client.CurrentProcessInstance(context.Background(), 42, "pre-screening")
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestCaseEventExistsSelectsID(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `[{"id": 1}]`)
	exists, err := client.CaseEventExists(context.Background(), 7, "PRE_SCREENING_INITIATED")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{"id"}, captured.query["select"])
	assert.Equal(t, []string{"eq.PRE_SCREENING_INITIATED"}, captured.query["event_type"])
}

func TestInsertCaseEventMergesDataFlat(t *testing.T) {
	client, captured := newTestClient(t, http.StatusCreated, ``)
	err := client.InsertCaseEvent(context.Background(), domain.CaseEvent{
		ProcessInstance: 7,
		EventType:       "PROJECT_INITIATED",
		Data:            map[string]any{"project": int64(42), "absent": nil},
	})
	require.NoError(t, err)

	assert.Equal(t, "return=minimal", captured.header.Get("Prefer"))
	require.Len(t, captured.rows, 1)
	row := captured.rows[0]
	assert.Equal(t, "PROJECT_INITIATED", row["event_type"])
	assert.Equal(t, 42.0, row["project"])
	_, hasAbsent := row["absent"]
	assert.False(t, hasAbsent)
}

func TestListDecisionElementsDiscardsMalformed(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK,
		`[{"id": 1, "title": "Project Details"}, {"id": "bad", "title": "X"}, {"id": 3, "title": "  "}]`)
	elements, err := client.ListDecisionElements(context.Background(), "pre-screening")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, int64(1), elements[0].ID)
	assert.Equal(t, "Project Details", elements[0].Title)
}

func TestUpsertDecisionPayloadsConflictKeys(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, `[]`)
	el := int64(3)
	_, err := client.UpsertDecisionPayloads(context.Background(), []domain.DecisionPayloadRecord{
		{ProcessInstance: 7, DecisionElement: &el, EvaluationData: map[string]any{"notes": "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"process_instance,decision_element"}, captured.query["on_conflict"])
	require.Len(t, captured.rows, 1)
	data, ok := captured.rows[0]["evaluation_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", data["notes"])
}

func TestBackendErrorSurfacesMessage(t *testing.T) {
	client, _ := newTestClient(t, http.StatusConflict, `{"message": "duplicate key"}`)
	_, err := client.UpsertProject(context.Background(), domain.ProjectRecord{})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusConflict, perr.Status)
	assert.Equal(t, "duplicate key", perr.Message)
}

func TestFailureMessageFallbacks(t *testing.T) {
	assert.Equal(t, "oops", failureMessage([]byte(`{"message": "oops"}`)))
	assert.Equal(t, `{"code":"23505"}`, failureMessage([]byte(`{"code": "23505"}`)))
	assert.Equal(t, "service unavailable", failureMessage([]byte("service unavailable")))
	assert.Equal(t, "backend request failed", failureMessage(nil))
}
