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

// ExecutionRepository stores execution history.
type ExecutionRepository struct {
	db *sql.DB
}

const executionColumns = `id, workflow_id, trigger_type, trigger_id, user_id, status,
	result, error_message, steps, created_at, updated_at, completed_at`

func (r *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal execution result: %w", err)
	}

	stepsJSON, err := json.Marshal(record.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal execution steps: %w", err)
	}

	record.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO execution_records (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.WorkflowID,
		record.TriggerType,
		nullString(record.TriggerID),
		nullString(record.UserID),
		record.Status,
		resultJSON,
		record.ErrorMessage,
		stepsJSON,
		record.CreatedAt,
		record.UpdatedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution record: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM execution_records WHERE id = $1`, id)

	record, err := scanExecutionRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution record: %w", err)
	}

	return record, nil
}

func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM execution_records WHERE 1=1`

	var args []any

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.Status != "" {
		args = append(args, opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	args = append(args, queryLimit(opts.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.ExecutionRecord

	for rows.Next() {
		record, err := scanExecutionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func scanExecutionRecord(row rowScanner) (*models.ExecutionRecord, error) {
	var (
		record       models.ExecutionRecord
		triggerID    sql.NullString
		userID       sql.NullString
		resultJSON   []byte
		errorMessage sql.NullString
		stepsJSON    []byte
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&record.ID,
		&record.WorkflowID,
		&record.TriggerType,
		&triggerID,
		&userID,
		&record.Status,
		&resultJSON,
		&errorMessage,
		&stepsJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	record.TriggerID = triggerID.String
	record.UserID = userID.String
	record.ErrorMessage = errorMessage.String

	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	if len(resultJSON) > 0 {
		err = json.Unmarshal(resultJSON, &record.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution result: %w", err)
		}
	}

	if len(stepsJSON) > 0 {
		err = json.Unmarshal(stepsJSON, &record.Steps)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution steps: %w", err)
		}
	}

	return &record, nil
}
