package file

import (
	"context"
	"sort"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

const workflowCollection = "workflows"

// WorkflowRepository stores workflow definitions as JSON files.
type WorkflowRepository struct {
	p *Persistence
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := r.p.read(workflowCollection, id, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrWorkflowNotFound
	}

	return &workflow, nil
}

func (r *WorkflowRepository) ListPublished(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := r.p.ids(workflowCollection)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workflow.Executable() {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	return r.p.write(workflowCollection, workflow.ID, workflow)
}
