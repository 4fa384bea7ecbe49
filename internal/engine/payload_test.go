package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prescreen/internal/domain"
)

func fullRegistry() Registry {
	reg := Registry{}
	for i, title := range BuilderTitles() {
		reg[title] = domain.DecisionElement{ID: int64(i + 1), Title: title}
	}
	return reg
}

func recordByTitle(t *testing.T, recs []domain.DecisionPayloadRecord, title string) domain.DecisionPayloadRecord {
	t.Helper()
	for _, rec := range recs {
		if rec.Title == title {
			return rec
		}
	}
	t.Fatalf("no record for title %q", title)
	return domain.DecisionPayloadRecord{}
}

func TestBuildPayloadsAlwaysSeven(t *testing.T) {
	recs := BuildPayloads(PayloadContext{}, 1, fullRegistry())
	require.Len(t, recs, 7)
	for i, title := range BuilderTitles() {
		assert.Equal(t, title, recs[i].Title)
		assert.Equal(t, int64(1), recs[i].ProcessInstance)
		require.NotNil(t, recs[i].DecisionElement)
	}
}

func TestBuildPayloadsMissingElementFallback(t *testing.T) {
	reg := fullRegistry()
	delete(reg, TitleConditions)
	recs := BuildPayloads(PayloadContext{}, 1, reg)
	rec := recordByTitle(t, recs, TitleConditions)
	assert.Nil(t, rec.DecisionElement)
	assert.Equal(t, TitleConditions, rec.EvaluationData["id"])
	assert.Equal(t, TitleConditions, rec.EvaluationData["title"])

	// Titles present in the catalog get the foreign key and no fallback.
	withElement := recordByTitle(t, recs, TitleProjectDetails)
	require.NotNil(t, withElement.DecisionElement)
	_, hasID := withElement.EvaluationData["id"]
	assert.False(t, hasID)
}

func TestProjectDetailsPayload(t *testing.T) {
	title := "Bridge Repair"
	pctx := PayloadContext{Record: domain.ProjectRecord{Title: &title}}
	recs := BuildPayloads(pctx, 1, fullRegistry())
	rec := recordByTitle(t, recs, TitleProjectDetails)
	project, ok := rec.EvaluationData["project"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Bridge Repair", project["title"])

	empty := BuildPayloads(PayloadContext{}, 1, fullRegistry())
	assert.Nil(t, recordByTitle(t, empty, TitleProjectDetails).EvaluationData["project"])
}

func TestServiceConfirmationPayloads(t *testing.T) {
	pctx := PayloadContext{Geo: domain.GeospatialResults{
		Services: map[string]domain.ServiceResult{
			"nepassist": {Raw: map[string]any{"hits": 3.0}, Summary: "3 resources"},
			"ipac":      {Summary: "   "},
		},
	}}
	recs := BuildPayloads(pctx, 1, fullRegistry())

	nepa := recordByTitle(t, recs, TitleNEPAssist).EvaluationData
	assert.Equal(t, map[string]any{"hits": 3.0}, nepa["raw"])
	assert.Equal(t, "3 resources", nepa["summary"])

	ipac := recordByTitle(t, recs, TitleIPaC).EvaluationData
	assert.Nil(t, ipac["raw"])
	assert.Nil(t, ipac["summary"])
	assert.False(t, HasMeaningfulData(ipac))
}

func TestPermitApplicabilityPayload(t *testing.T) {
	done := true
	pctx := PayloadContext{
		Form: domain.FormData{"permit_notes": "county permit pending"},
		Checklist: []domain.ChecklistItem{
			{Label: "Section 404", Completed: &done, Source: "USACE"},
			{Label: "   "},
		},
	}
	recs := BuildPayloads(pctx, 1, fullRegistry())
	data := recordByTitle(t, recs, TitlePermitApplicability).EvaluationData
	items, ok := data["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	entry := items[0].(map[string]any)
	assert.Equal(t, "Section 404", entry["label"])
	assert.Equal(t, true, entry["completed"])
	assert.Equal(t, "USACE", entry["source"])
	assert.Equal(t, "county permit pending", data["notes"])
}

// Builders 5 and 6 project the same two form fields twice on purpose.
func TestCategoricalExclusionAndConditionsShareFields(t *testing.T) {
	pctx := PayloadContext{Form: domain.FormData{
		"categorical_exclusion_codes": "CE-1, CE-2; CE-3",
		"extraordinary_circumstances": "Wetlands nearby",
		"conformance_conditions":      "Work daylight hours only",
	}}
	recs := BuildPayloads(pctx, 1, fullRegistry())

	ce := recordByTitle(t, recs, TitleCategoricalExclusions).EvaluationData
	assert.Equal(t, []any{"CE-1", "CE-2", "CE-3"}, ce["candidates"])
	assert.Equal(t, "Wetlands nearby\n\nWork daylight hours only", ce["rationale"])

	cond := recordByTitle(t, recs, TitleConditions).EvaluationData
	assert.Equal(t, []any{"Work daylight hours only"}, cond["conditions"])
	assert.Equal(t, "Wetlands nearby", cond["notes"])
}

func TestCategoricalExclusionRationaleSkipsDuplicates(t *testing.T) {
	pctx := PayloadContext{Form: domain.FormData{
		"extraordinary_circumstances": "Same text",
		"conformance_conditions":      "Same text",
	}}
	recs := BuildPayloads(pctx, 1, fullRegistry())
	ce := recordByTitle(t, recs, TitleCategoricalExclusions).EvaluationData
	assert.Equal(t, "Same text", ce["rationale"])
	assert.Nil(t, ce["candidates"])
}

func TestResourceNotesPayload(t *testing.T) {
	pctx := PayloadContext{Geo: domain.GeospatialResults{
		Services: map[string]domain.ServiceResult{
			"ipac":      {Status: "completed", Summary: "2 species"},
			"nepassist": {Status: "error", Error: "timeout"},
			"noop":      {Status: "idle"},
		},
		LastRun: "2024-03-05T14:30:00Z",
	}}
	recs := BuildPayloads(pctx, 1, fullRegistry())
	data := recordByTitle(t, recs, TitleResourceNotes).EvaluationData

	summary, ok := data["summary"].(string)
	require.True(t, ok)
	assert.Contains(t, summary, "ipac: completed (2 species)")
	assert.Contains(t, summary, "nepassist: error")
	assert.NotContains(t, summary, "noop")
	assert.Contains(t, summary, "Last run: Mar 5, 2024 14:30 UTC")

	services, ok := data["services"].([]any)
	require.True(t, ok)
	require.Len(t, services, 2)
	first := services[0].(map[string]any)
	assert.Equal(t, "ipac", first["name"])
	second := services[1].(map[string]any)
	assert.Equal(t, "timeout", second["error"])
}

func TestResourceNotesEmptyGeo(t *testing.T) {
	recs := BuildPayloads(PayloadContext{}, 1, fullRegistry())
	data := recordByTitle(t, recs, TitleResourceNotes).EvaluationData
	assert.Nil(t, data["summary"])
	assert.Nil(t, data["services"])
	assert.False(t, HasMeaningfulData(data))
}
