package engine

import (
	"context"

	"prescreen/internal/domain"
)

// Registry maps catalog titles to decision elements for one process model.
type Registry map[string]domain.DecisionElement

// LoadRegistry fetches the configured element catalog. Malformed entries are
// dropped at the gateway; titles the pipeline expects but the catalog lacks
// are tolerated and surfaced by MissingTitles.
func (e Engine) LoadRegistry(ctx context.Context) (Registry, error) {
	elements, err := e.Store.ListDecisionElements(ctx, e.ProcessModel)
	if err != nil {
		return nil, err
	}
	reg := Registry{}
	for _, el := range elements {
		if el.Title == "" {
			continue
		}
		reg[el.Title] = el
	}
	return reg, nil
}

// MissingTitles returns the given titles that have no catalog entry, in order.
func (r Registry) MissingTitles(titles []string) []string {
	var missing []string
	for _, title := range titles {
		if _, ok := r[title]; !ok {
			missing = append(missing, title)
		}
	}
	return missing
}
