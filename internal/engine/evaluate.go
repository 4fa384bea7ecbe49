package engine

import (
	"math"
	"strings"

	"prescreen/internal/domain"
)

// housekeepingKeys never count toward meaningfulness, at any nesting level.
var housekeepingKeys = map[string]bool{
	"id":               true,
	"process_instance": true,
}

// Evaluation reports which builder titles carry meaningful data.
type Evaluation struct {
	Total           int      `json:"total"`
	CompletedTitles []string `json:"completed_titles"`
	IsComplete      bool     `json:"is_complete"`
}

// Evaluate tests each builder title's record in pipeline order and reports
// completeness: complete iff every title's payload is meaningful.
func Evaluate(records []domain.DecisionPayloadRecord) Evaluation {
	byTitle := map[string]domain.DecisionPayloadRecord{}
	for _, rec := range records {
		byTitle[rec.Title] = rec
	}
	eval := Evaluation{Total: len(payloadBuilders), CompletedTitles: []string{}}
	for _, b := range payloadBuilders {
		rec, ok := byTitle[b.title]
		if !ok {
			continue
		}
		if HasMeaningfulData(rec.EvaluationData) {
			eval.CompletedTitles = append(eval.CompletedTitles, b.title)
		}
	}
	eval.IsComplete = len(eval.CompletedTitles) == eval.Total
	return eval
}

// HasMeaningfulData reports whether the payload carries anything beyond
// housekeeping keys: a non-blank string, finite number, boolean, or a
// collection containing such a value at any depth.
func HasMeaningfulData(payload map[string]any) bool {
	for key, v := range payload {
		if housekeepingKeys[key] {
			continue
		}
		if meaningfulValue(v) {
			return true
		}
	}
	return false
}

func meaningfulValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return true
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return meaningfulValue(float64(t))
	case int:
		return true
	case int64:
		return true
	case []any:
		for _, item := range t {
			if meaningfulValue(item) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range t {
			if meaningfulValue(item) {
				return true
			}
		}
		return false
	case map[string]any:
		return HasMeaningfulData(t)
	default:
		return false
	}
}
