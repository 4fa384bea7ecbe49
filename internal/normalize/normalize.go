// Package normalize turns loosely-typed form input into canonical values.
// Absence is signaled with nil, never with placeholder zero values.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"prescreen/internal/domain"
)

// String returns the trimmed value, or nil for non-strings and blank input.
func String(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Number returns a finite float64, or nil for non-numeric or non-finite input.
// Numeric strings are accepted the way the intake form delivers them.
func Number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Contact builds a contact from a loose mapping, keeping only non-empty
// fields. It returns nil unless at least one field survives normalization.
func Contact(v any) *domain.Contact {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	c := domain.Contact{
		Name:         String(m["name"]),
		Organization: String(m["organization"]),
		Email:        String(m["email"]),
		Phone:        String(m["phone"]),
	}
	if c.Name == nil && c.Organization == nil && c.Email == nil && c.Phone == nil {
		return nil
	}
	return &c
}

// DelimitedList splits on runs of newlines, semicolons and commas, trims each
// entry and drops empties. Blank input yields an empty list.
func DelimitedList(v any) []string {
	s := String(v)
	if s == nil {
		return []string{}
	}
	items := []string{}
	for _, part := range strings.FieldsFunc(*s, isDelimiter) {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func isDelimiter(r rune) bool {
	return r == '\n' || r == '\r' || r == ';' || r == ','
}

// Location attempts a structured parse of a location field. On success the
// parsed value is returned (primitives included); on failure the raw string is
// returned so callers can preserve it instead of dropping it.
func Location(v any) (parsed any, raw string) {
	s := String(v)
	if s == nil {
		return nil, ""
	}
	if err := json.Unmarshal([]byte(*s), &parsed); err != nil {
		return nil, *s
	}
	return parsed, ""
}
