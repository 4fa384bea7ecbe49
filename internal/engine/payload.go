package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"prescreen/internal/domain"
	"prescreen/internal/normalize"
)

// Builder titles, in pipeline order. Each title is the catalog key for the
// decision element the builder's record attaches to.
const (
	TitleProjectDetails        = "Project Details"
	TitleNEPAssist             = "NEPA Assist Confirmation"
	TitleIPaC                  = "IPaC Confirmation"
	TitlePermitApplicability   = "Permit Applicability"
	TitleCategoricalExclusions = "Categorical Exclusion References"
	TitleConditions            = "Conditions"
	TitleResourceNotes         = "Resource Notes"
)

// Geospatial service keys for the two confirmation builders.
const (
	serviceNEPAssist = "nepassist"
	serviceIPaC      = "ipac"
)

// PayloadContext is the shared input every builder maps from.
type PayloadContext struct {
	Record    domain.ProjectRecord
	Geo       domain.GeospatialResults
	Checklist []domain.ChecklistItem
	Form      domain.FormData
}

type payloadBuilder struct {
	title string
	build func(PayloadContext) map[string]any
}

// payloadBuilders is the fixed ordered pipeline. The order matters only for
// deterministic output; the store upserts by key, not by position.
var payloadBuilders = []payloadBuilder{
	{TitleProjectDetails, buildProjectDetails},
	{TitleNEPAssist, serviceConfirmation(serviceNEPAssist)},
	{TitleIPaC, serviceConfirmation(serviceIPaC)},
	{TitlePermitApplicability, buildPermitApplicability},
	{TitleCategoricalExclusions, buildCategoricalExclusions},
	{TitleConditions, buildConditions},
	{TitleResourceNotes, buildResourceNotes},
}

// BuilderTitles returns the pipeline titles in order.
func BuilderTitles() []string {
	titles := make([]string, len(payloadBuilders))
	for i, b := range payloadBuilders {
		titles[i] = b.title
	}
	return titles
}

// BuildPayloads runs every builder and produces exactly one record per title.
// When the registry lacks a title, the record is still emitted: the outer
// decision_element key is left absent and the payload body gets id/title
// fallbacks synthesized from the builder title.
func BuildPayloads(pctx PayloadContext, processInstanceID int64, reg Registry) []domain.DecisionPayloadRecord {
	records := make([]domain.DecisionPayloadRecord, 0, len(payloadBuilders))
	for _, b := range payloadBuilders {
		data := b.build(pctx)
		if data == nil {
			data = map[string]any{}
		}
		rec := domain.DecisionPayloadRecord{
			ProcessInstance: processInstanceID,
			EvaluationData:  data,
			Title:           b.title,
		}
		if el, ok := reg[b.title]; ok {
			id := el.ID
			rec.DecisionElement = &id
		} else {
			if _, ok := data["id"]; !ok {
				data["id"] = b.title
			}
			if _, ok := data["title"]; !ok {
				data["title"] = b.title
			}
		}
		records = append(records, rec)
	}
	return records
}

func buildProjectDetails(pctx PayloadContext) map[string]any {
	row, err := recordAsMap(pctx.Record)
	if err != nil || len(row) == 0 {
		return map[string]any{"project": nil}
	}
	return map[string]any{"project": row}
}

func serviceConfirmation(name string) func(PayloadContext) map[string]any {
	return func(pctx PayloadContext) map[string]any {
		s := pctx.Geo.Services[name]
		return map[string]any{
			"raw":     collapseEmpty(s.Raw),
			"summary": collapseEmpty(s.Summary),
		}
	}
}

func buildPermitApplicability(pctx PayloadContext) map[string]any {
	items := []any{}
	for _, item := range pctx.Checklist {
		entry := map[string]any{}
		if label := normalize.String(item.Label); label != nil {
			entry["label"] = *label
		}
		if item.Completed != nil {
			entry["completed"] = *item.Completed
		}
		if notes := normalize.String(item.Notes); notes != nil {
			entry["notes"] = *notes
		}
		if source := normalize.String(item.Source); source != nil {
			entry["source"] = *source
		}
		if len(entry) == 0 {
			continue
		}
		items = append(items, entry)
	}
	return map[string]any{
		"items": collapseEmpty(items),
		"notes": collapseEmpty(pctx.Form["permit_notes"]),
	}
}

func buildCategoricalExclusions(pctx PayloadContext) map[string]any {
	candidates := normalize.DelimitedList(pctx.Form["categorical_exclusion_codes"])
	rationale := joinDistinct(
		normalize.String(pctx.Form["extraordinary_circumstances"]),
		normalize.String(pctx.Form["conformance_conditions"]),
	)
	return map[string]any{
		"candidates": collapseEmpty(stringsToAny(candidates)),
		"rationale":  collapseEmpty(rationale),
	}
}

// buildConditions reuses the same two form fields as the categorical
// exclusion builder under a different projection. That duplication is
// intentional and must be kept.
func buildConditions(pctx PayloadContext) map[string]any {
	conditions := normalize.DelimitedList(pctx.Form["conformance_conditions"])
	return map[string]any{
		"conditions": collapseEmpty(stringsToAny(conditions)),
		"notes":      collapseEmpty(pctx.Form["extraordinary_circumstances"]),
	}
}

func buildResourceNotes(pctx PayloadContext) map[string]any {
	names := make([]string, 0, len(pctx.Geo.Services))
	for name := range pctx.Geo.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{}
	services := []any{}
	for _, name := range names {
		s := pctx.Geo.Services[name]
		if !s.Includable() {
			continue
		}
		status := strings.TrimSpace(s.Status)
		if status == "" {
			status = "unknown"
		}
		line := fmt.Sprintf("%s: %s", name, status)
		if summary := normalize.String(s.Summary); summary != nil {
			line += " (" + *summary + ")"
		}
		lines = append(lines, line)

		entry := map[string]any{"name": name}
		if status != "unknown" {
			entry["status"] = status
		}
		if v := collapseEmpty(s.Summary); v != nil {
			entry["summary"] = v
		}
		if v := normalize.String(s.Error); v != nil {
			entry["error"] = *v
		}
		if len(s.Meta) > 0 {
			entry["meta"] = s.Meta
		}
		services = append(services, entry)
	}
	if ts := formatLastRun(pctx.Geo.LastRun); ts != "" {
		lines = append(lines, "Last run: "+ts)
	}
	return map[string]any{
		"summary":  collapseEmpty(strings.Join(lines, "\n")),
		"services": collapseEmpty(services),
	}
}

// formatLastRun renders an RFC 3339 timestamp for the summary, passing
// anything else through verbatim.
func formatLastRun(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC().Format("Jan 2, 2006 15:04 UTC")
	}
	return raw
}

// joinDistinct concatenates the non-empty parts with blank-line separation,
// skipping duplicates.
func joinDistinct(parts ...*string) string {
	var out []string
	seen := map[string]bool{}
	for _, p := range parts {
		if p == nil || seen[*p] {
			continue
		}
		seen[*p] = true
		out = append(out, *p)
	}
	return strings.Join(out, "\n\n")
}

// collapseEmpty maps blank strings and empty collections to nil so empty
// inputs read as absent in the payload body.
func collapseEmpty(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
		return nil
	case []any:
		if len(t) > 0 {
			return t
		}
		return nil
	case []string:
		if len(t) > 0 {
			return stringsToAny(t)
		}
		return nil
	case map[string]any:
		if len(t) > 0 {
			return t
		}
		return nil
	default:
		return v
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// recordAsMap flattens the record through its JSON form so stripped fields
// stay absent.
func recordAsMap(rec domain.ProjectRecord) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return row, nil
}
