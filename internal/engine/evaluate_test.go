package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"prescreen/internal/domain"
)

func TestHasMeaningfulDataEmpty(t *testing.T) {
	assert.False(t, HasMeaningfulData(nil))
	assert.False(t, HasMeaningfulData(map[string]any{}))
	assert.False(t, HasMeaningfulData(map[string]any{"id": 12, "process_instance": 4}))
	assert.False(t, HasMeaningfulData(map[string]any{"notes": nil, "summary": "   "}))
	assert.False(t, HasMeaningfulData(map[string]any{"items": []any{}}))
	assert.False(t, HasMeaningfulData(map[string]any{"items": []any{"", nil}}))
	assert.False(t, HasMeaningfulData(map[string]any{"nested": map[string]any{"id": 1}}))
	assert.False(t, HasMeaningfulData(map[string]any{"n": math.NaN()}))
}

func TestHasMeaningfulDataLeaves(t *testing.T) {
	assert.True(t, HasMeaningfulData(map[string]any{"notes": "x"}))
	assert.True(t, HasMeaningfulData(map[string]any{"count": 0.0}))
	assert.True(t, HasMeaningfulData(map[string]any{"completed": false}))
	assert.True(t, HasMeaningfulData(map[string]any{"items": []any{"", "a"}}))
	assert.True(t, HasMeaningfulData(map[string]any{"nested": map[string]any{"id": 1, "label": "x"}}))
	// The ignore set applies at every nesting level, so housekeeping keys in
	// nested objects never count.
	assert.True(t, HasMeaningfulData(map[string]any{"nested": map[string]any{"deep": map[string]any{"ok": true}}}))
}

func payloadRecords(fill bool) []domain.DecisionPayloadRecord {
	recs := make([]domain.DecisionPayloadRecord, 0, len(payloadBuilders))
	for _, b := range payloadBuilders {
		data := map[string]any{}
		if fill {
			data["value"] = "x"
		}
		recs = append(recs, domain.DecisionPayloadRecord{Title: b.title, EvaluationData: data})
	}
	return recs
}

func TestEvaluateAllEmpty(t *testing.T) {
	eval := Evaluate(payloadRecords(false))
	assert.Equal(t, 7, eval.Total)
	assert.Empty(t, eval.CompletedTitles)
	assert.False(t, eval.IsComplete)
}

func TestEvaluateAllMeaningful(t *testing.T) {
	eval := Evaluate(payloadRecords(true))
	assert.True(t, eval.IsComplete)
	assert.Equal(t, BuilderTitles(), eval.CompletedTitles)
}

func TestEvaluatePartial(t *testing.T) {
	recs := payloadRecords(false)
	recs[0].EvaluationData["value"] = "x"
	recs[3].EvaluationData["value"] = "y"
	eval := Evaluate(recs)
	assert.False(t, eval.IsComplete)
	assert.Equal(t, []string{TitleProjectDetails, TitlePermitApplicability}, eval.CompletedTitles)
}

func TestServiceIncludable(t *testing.T) {
	assert.False(t, domain.ServiceResult{}.Includable())
	assert.False(t, domain.ServiceResult{Status: "idle"}.Includable())
	assert.False(t, domain.ServiceResult{Summary: ""}.Includable())
	assert.False(t, domain.ServiceResult{Summary: []any{}}.Includable())
	assert.True(t, domain.ServiceResult{Status: "running"}.Includable())
	assert.True(t, domain.ServiceResult{Summary: "3 hits"}.Includable())
	assert.True(t, domain.ServiceResult{Summary: 0.0}.Includable())
	assert.True(t, domain.ServiceResult{Raw: map[string]any{}}.Includable())
	assert.True(t, domain.ServiceResult{Error: "timeout"}.Includable())
	assert.True(t, domain.ServiceResult{Meta: map[string]any{"k": "v"}}.Includable())
}
