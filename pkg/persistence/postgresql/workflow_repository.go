package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository struct {
	db *sql.DB
}

const workflowColumns = `id, name, description, status, rule, shared_flows, metadata,
	created_at, updated_at, published_at`

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	ruleJSON, err := json.Marshal(workflow.Rule)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow rule: %w", err)
	}

	sharedFlowsJSON, err := json.Marshal(workflow.SharedFlows)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow shared flows: %w", err)
	}

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow metadata: %w", err)
	}

	workflow.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			rule = EXCLUDED.rule,
			shared_flows = EXCLUDED.shared_flows,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		ruleJSON,
		sharedFlowsJSON,
		metadataJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListPublished(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE status = 'published' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, rows.Err()
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow        models.Workflow
		description     sql.NullString
		ruleJSON        []byte
		sharedFlowsJSON []byte
		metadataJSON    []byte
		publishedAt     sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&description,
		&workflow.Status,
		&ruleJSON,
		&sharedFlowsJSON,
		&metadataJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Description = description.String

	if publishedAt.Valid {
		workflow.PublishedAt = &publishedAt.Time
	}

	err = json.Unmarshal(ruleJSON, &workflow.Rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow rule: %w", err)
	}

	if len(sharedFlowsJSON) > 0 {
		err = json.Unmarshal(sharedFlowsJSON, &workflow.SharedFlows)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow shared flows: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &workflow.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow metadata: %w", err)
		}
	}

	return &workflow, nil
}
