package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relaykit/journey/pkg/models"
)

// WatermarkRepository stores batch watermarks keyed by (workflow, trigger
// type). The primary key plus the conditional upsert keep the watermark
// single-rowed and monotonic under concurrent sweeps.
type WatermarkRepository struct {
	db *sql.DB
}

func (r *WatermarkRepository) Get(ctx context.Context, workflowID, triggerType string) (*models.ExecutionWatermark, error) {
	var watermark models.ExecutionWatermark

	err := r.db.QueryRowContext(ctx, `
		SELECT workflow_id, trigger_type, last_execution_at, updated_at
		FROM execution_watermarks
		WHERE workflow_id = $1 AND trigger_type = $2
	`, workflowID, triggerType).Scan(
		&watermark.WorkflowID,
		&watermark.TriggerType,
		&watermark.LastExecutionAt,
		&watermark.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	return &watermark, nil
}

func (r *WatermarkRepository) Advance(ctx context.Context, workflowID, triggerType string, to time.Time) error {
	// The WHERE clause on the conflict arm drops backwards moves instead of
	// failing, so a slow sweeper racing a fast one is harmless.
	query := `
		INSERT INTO execution_watermarks (workflow_id, trigger_type, last_execution_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (workflow_id, trigger_type) DO UPDATE
		SET last_execution_at = EXCLUDED.last_execution_at, updated_at = NOW()
		WHERE execution_watermarks.last_execution_at < EXCLUDED.last_execution_at
	`

	_, err := r.db.ExecContext(ctx, query, workflowID, triggerType, to)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	return nil
}
