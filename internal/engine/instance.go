package engine

import (
	"context"
	"strings"

	"prescreen/internal/domain"
	"prescreen/internal/store"
)

// instanceDescription derives the instance description from the project title.
func instanceDescription(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Pre-Screening"
	}
	return title + " Pre-Screening"
}

// CreateInstance inserts a new process instance for the project.
func (e Engine) CreateInstance(ctx context.Context, projectID int64, title string) (domain.ProcessInstance, error) {
	inst, err := e.Store.InsertProcessInstance(ctx, domain.ProcessInstance{
		Description:     instanceDescription(title),
		ProcessModel:    e.ProcessModel,
		ParentProjectID: projectID,
	})
	if err != nil {
		return domain.ProcessInstance{}, err
	}
	if inst.ID == 0 {
		return domain.ProcessInstance{}, store.Errf("create process instance", "store did not return an identifier")
	}
	return inst, nil
}

// ResolveOrCreate returns the current process instance for the project,
// creating one when none exists. The lookup-then-insert is not transactional:
// two concurrent first submissions can each observe "not found" and both
// insert. The store needs a unique key on (parent_project_id, process_model)
// to close that window.
func (e Engine) ResolveOrCreate(ctx context.Context, projectID int64, title string) (domain.ProcessInstance, bool, error) {
	existing, err := e.Store.CurrentProcessInstance(ctx, projectID, e.ProcessModel)
	if err != nil {
		return domain.ProcessInstance{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}
	inst, err := e.CreateInstance(ctx, projectID, title)
	if err != nil {
		return domain.ProcessInstance{}, false, err
	}
	return inst, true, nil
}
