package file

import (
	"context"
	"sort"
	"time"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

const executionCollection = "executions"

// ExecutionRepository stores execution history as JSON files.
type ExecutionRepository struct {
	p *Persistence
}

func (r *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record.UpdatedAt = time.Now().UTC()

	return r.p.write(executionCollection, record.ID, record)
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	var record models.ExecutionRecord

	found, err := r.p.read(executionCollection, id, &record)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrExecutionNotFound
	}

	return &record, nil
}

func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.ExecutionRecord, error) {
	ids, err := r.p.ids(executionCollection)
	if err != nil {
		return nil, err
	}

	records := make([]*models.ExecutionRecord, 0, len(ids))

	for _, id := range ids {
		record, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if opts.WorkflowID != "" && record.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != "" && record.Status != opts.Status {
			continue
		}

		if !opts.Since.IsZero() && record.CreatedAt.Before(opts.Since) {
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return records, nil
}
