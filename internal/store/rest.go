package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prescreen/internal/domain"
	"prescreen/internal/normalize"
)

// Collection names on the backend.
const (
	collProject         = "project"
	collInstance        = "process_instance"
	collCaseEvent       = "case_event"
	collElement         = "decision_element"
	collDecisionPayload = "process_decision_payload"
)

// RESTClient talks to the hosted resource store. Every request and response is
// JSON; non-2xx responses surface as PersistenceError with the backend's
// message and status.
type RESTClient struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Stamp       Stamp
	Timeout     time.Duration
}

// NewREST creates a client, failing fast when credentials are missing.
func NewREST(baseURL, apiKey string, stamp Stamp) (*RESTClient, error) {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, Errf("configure backend", "missing backend credentials")
	}
	return &RESTClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Stamp:   stamp,
		Timeout: 15 * time.Second,
	}, nil
}

var _ Gateway = (*RESTClient)(nil)

func (c *RESTClient) UpsertProject(ctx context.Context, rec domain.ProjectRecord) (domain.ProjectRecord, error) {
	row, err := toRow(rec)
	if err != nil {
		return domain.ProjectRecord{}, err
	}
	c.stampRow(row)
	rows, err := c.upsert(ctx, collProject, []string{"id"}, []map[string]any{row})
	if err != nil {
		return domain.ProjectRecord{}, err
	}
	if len(rows) == 0 {
		return domain.ProjectRecord{}, Errf("upsert project", "backend returned no representation")
	}
	var stored domain.ProjectRecord
	if err := fromRow(rows[0], &stored); err != nil {
		return domain.ProjectRecord{}, err
	}
	return stored, nil
}

func (c *RESTClient) CurrentProcessInstance(ctx context.Context, parentProjectID int64, processModel string) (*domain.ProcessInstance, error) {
	rows, err := c.query(ctx, collInstance, map[string]string{
		"parent_project_id": strconv.FormatInt(parentProjectID, 10),
		"process_model":     processModel,
	}, "last_updated.desc.nullslast,id.desc", 1, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var inst domain.ProcessInstance
	if err := fromRow(rows[0], &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (c *RESTClient) InsertProcessInstance(ctx context.Context, inst domain.ProcessInstance) (domain.ProcessInstance, error) {
	row, err := toRow(inst)
	if err != nil {
		return domain.ProcessInstance{}, err
	}
	delete(row, "id")
	c.stampRow(row)
	rows, err := c.insert(ctx, collInstance, []map[string]any{row}, true)
	if err != nil {
		return domain.ProcessInstance{}, err
	}
	if len(rows) == 0 {
		return domain.ProcessInstance{}, Errf("insert process instance", "backend returned no representation")
	}
	var stored domain.ProcessInstance
	if err := fromRow(rows[0], &stored); err != nil {
		return domain.ProcessInstance{}, err
	}
	return stored, nil
}

func (c *RESTClient) CaseEventExists(ctx context.Context, processInstanceID int64, eventType string) (bool, error) {
	rows, err := c.query(ctx, collCaseEvent, map[string]string{
		"process_instance": strconv.FormatInt(processInstanceID, 10),
		"event_type":       eventType,
	}, "", 1, "id")
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (c *RESTClient) InsertCaseEvent(ctx context.Context, ev domain.CaseEvent) error {
	row := map[string]any{
		"process_instance": ev.ProcessInstance,
		"event_type":       ev.EventType,
	}
	// Caller data is merged flat; callers never shadow housekeeping keys.
	for k, v := range ev.Data {
		if v != nil {
			row[k] = v
		}
	}
	c.stampRow(row)
	_, err := c.insert(ctx, collCaseEvent, []map[string]any{row}, false)
	return err
}

func (c *RESTClient) ListDecisionElements(ctx context.Context, processModel string) ([]domain.DecisionElement, error) {
	rows, err := c.query(ctx, collElement, map[string]string{"process_model": processModel}, "", 0, "id,title")
	if err != nil {
		return nil, err
	}
	elements := make([]domain.DecisionElement, 0, len(rows))
	for _, row := range rows {
		// Malformed catalog rows are discarded, not fatal.
		title := normalize.String(row["title"])
		id := normalize.Number(row["id"])
		if title == nil || id == nil {
			continue
		}
		elements = append(elements, domain.DecisionElement{ID: int64(*id), Title: *title})
	}
	return elements, nil
}

func (c *RESTClient) UpsertDecisionPayloads(ctx context.Context, recs []domain.DecisionPayloadRecord) ([]domain.DecisionPayloadRecord, error) {
	rows := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		row, err := toRow(rec)
		if err != nil {
			return nil, err
		}
		c.stampRow(row)
		rows = append(rows, row)
	}
	if _, err := c.upsert(ctx, collDecisionPayload, []string{"process_instance", "decision_element"}, rows); err != nil {
		return nil, err
	}
	return recs, nil
}

// --- transport ---

func (c *RESTClient) upsert(ctx context.Context, collection string, conflictKeys []string, rows []map[string]any) ([]map[string]any, error) {
	endpoint := fmt.Sprintf("%s?on_conflict=%s", collection, url.QueryEscape(strings.Join(conflictKeys, ",")))
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=representation"}
	return c.do(ctx, http.MethodPost, endpoint, "upsert "+collection, rows, headers)
}

func (c *RESTClient) insert(ctx context.Context, collection string, rows []map[string]any, returning bool) ([]map[string]any, error) {
	prefer := "return=minimal"
	if returning {
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodPost, collection, "insert "+collection, rows, map[string]string{"Prefer": prefer})
}

func (c *RESTClient) query(ctx context.Context, collection string, filters map[string]string, order string, limit int, sel string) ([]map[string]any, error) {
	params := url.Values{}
	for col, val := range filters {
		params.Set(col, "eq."+val)
	}
	if order != "" {
		params.Set("order", order)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if sel != "" {
		params.Set("select", sel)
	}
	endpoint := collection + "?" + params.Encode()
	return c.do(ctx, http.MethodGet, endpoint, "query "+collection, nil, nil)
}

func (c *RESTClient) do(ctx context.Context, method, endpoint, op string, body any, headers map[string]string) ([]map[string]any, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, Errf(op, "encode request: %v", err)
		}
	}
	reqURL := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return nil, Errf(op, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.APIKey)
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, Errf(op, "%v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &PersistenceError{Op: op, Status: resp.StatusCode, Message: failureMessage(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		// Some endpoints return a single object.
		var row map[string]any
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, Errf(op, "decode response: %v", err)
		}
		rows = []map[string]any{row}
	}
	return rows, nil
}

// failureMessage extracts the backend's message field, falling back to the
// whole JSON body, falling back to raw text.
func failureMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "backend request failed"
	}
	var envelope map[string]any
	if err := json.Unmarshal(trimmed, &envelope); err == nil {
		if msg, ok := envelope["message"].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
		if compact, err := json.Marshal(envelope); err == nil {
			return string(compact)
		}
	}
	return string(trimmed)
}

func toRow(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, Errf("encode row", "%v", err)
	}
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, Errf("encode row", "%v", err)
	}
	return row, nil
}

func fromRow(row map[string]any, out any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return Errf("decode row", "%v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Errf("decode row", "%v", err)
	}
	return nil
}

func (c *RESTClient) stampRow(row map[string]any) {
	for k, v := range c.Stamp.Fields() {
		row[k] = v
	}
}
