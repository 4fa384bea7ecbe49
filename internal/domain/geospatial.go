package domain

import "strings"

// Includable reports whether a service result carries content worth
// surfacing: a non-idle status, a non-empty summary, raw output, an error, or
// metadata. Idle, empty services are omitted from resource summaries.
func (s ServiceResult) Includable() bool {
	status := strings.ToLower(strings.TrimSpace(s.Status))
	if status != "" && status != "idle" {
		return true
	}
	if nonEmptyValue(s.Summary) {
		return true
	}
	if s.Raw != nil {
		return true
	}
	if strings.TrimSpace(s.Error) != "" {
		return true
	}
	return len(s.Meta) > 0
}

// AnyIncludable reports whether any service produced includable content.
func (g GeospatialResults) AnyIncludable() bool {
	for _, s := range g.Services {
		if s.Includable() {
			return true
		}
	}
	return false
}

// nonEmptyValue treats any scalar as content and collections as content when
// they have at least one entry.
func nonEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
