// Package record assembles the canonical project snapshot from a raw intake
// submission.
package record

import (
	"sort"

	"prescreen/internal/domain"
	"prescreen/internal/normalize"
)

// BuildInput carries everything the snapshot depends on.
type BuildInput struct {
	Form domain.FormData
	Geo  domain.GeospatialResults

	// KnownID and KnownTitle override the form when the caller already holds
	// the persisted identity.
	KnownID    *int64
	KnownTitle *string
}

// Build produces the canonical project record. Every field is independently
// normalized and undefined fields are stripped, so absence, not null, signals
// "not provided" to the persistence layer.
func Build(in BuildInput) domain.ProjectRecord {
	form := in.Form
	if form == nil {
		form = domain.FormData{}
	}

	rec := domain.ProjectRecord{
		ID:                    in.KnownID,
		Title:                 in.KnownTitle,
		Description:           normalize.String(form["description"]),
		Sector:                normalize.String(form["sector"]),
		LeadAgency:            normalize.String(form["lead_agency"]),
		ParticipatingAgencies: normalize.String(form["participating_agencies"]),
		Sponsor:               normalize.String(form["sponsor"]),
		Funding:               normalize.String(form["funding"]),
		LocationText:          normalize.String(form["location"]),
		Latitude:              normalize.Number(form["latitude"]),
		Longitude:             normalize.Number(form["longitude"]),
		SponsorContact:        normalize.Contact(form["sponsor_contact"]),
	}
	if rec.Title == nil {
		rec.Title = normalize.String(form["title"])
	}

	parsed, rawLocation := normalize.Location(form["location"])
	rec.Location = parsed

	other := map[string]any{}
	if notes := normalize.String(form["notes"]); notes != nil {
		other["notes"] = *notes
	}
	if in.Geo.AnyIncludable() {
		other["geospatial_summary"] = geoSummary(in.Geo)
	}
	if rawLocation != "" {
		// The unparsable raw string must never be silently dropped.
		other["location_raw"] = rawLocation
	}
	if len(other) > 0 {
		rec.Other = other
	}
	return rec
}

// geoSummary condenses the includable services into a status map for the
// record's free-form bag.
func geoSummary(geo domain.GeospatialResults) map[string]any {
	statuses := map[string]any{}
	for _, name := range sortedServiceNames(geo) {
		s := geo.Services[name]
		if !s.Includable() {
			continue
		}
		status := s.Status
		if status == "" {
			status = "unknown"
		}
		statuses[name] = status
	}
	summary := map[string]any{"services": statuses}
	if geo.LastRun != "" {
		summary["last_run"] = geo.LastRun
	}
	return summary
}

func sortedServiceNames(geo domain.GeospatialResults) []string {
	names := make([]string, 0, len(geo.Services))
	for name := range geo.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
