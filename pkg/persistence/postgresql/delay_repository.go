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

// DelayRepository stores delay records. The claim step is a single
// conditional UPDATE so that concurrent sweepers on different instances can
// never both take the same record.
type DelayRepository struct {
	db *sql.DB
}

const delayColumns = `id, execution_id, workflow_id, step_id, delay_type, duration_ms,
	scheduled_at, execute_at, status, context, remaining, result, error_message,
	claimed_by, claimed_at, created_at, updated_at`

func (r *DelayRepository) Save(ctx context.Context, record *models.DelayRecord) error {
	contextJSON, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal delay context: %w", err)
	}

	remainingJSON, err := json.Marshal(record.Remaining)
	if err != nil {
		return fmt.Errorf("failed to marshal delay continuation: %w", err)
	}

	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal delay result: %w", err)
	}

	record.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO delay_records (` + delayColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			claimed_by = EXCLUDED.claimed_by,
			claimed_at = EXCLUDED.claimed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.ExecutionID,
		record.WorkflowID,
		record.StepID,
		record.DelayType,
		record.Duration.Milliseconds(),
		record.ScheduledAt,
		record.ExecuteAt,
		record.Status,
		contextJSON,
		remainingJSON,
		resultJSON,
		record.ErrorMessage,
		nullString(record.ClaimedBy),
		record.ClaimedAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save delay record: %w", err)
	}

	return nil
}

func (r *DelayRepository) GetByID(ctx context.Context, id string) (*models.DelayRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+delayColumns+` FROM delay_records WHERE id = $1`, id)

	record, err := scanDelayRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDelayNotFound
		}

		return nil, fmt.Errorf("failed to scan delay record: %w", err)
	}

	return record, nil
}

func (r *DelayRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.DelayRecord, error) {
	return r.query(ctx,
		`SELECT `+delayColumns+` FROM delay_records WHERE execution_id = $1 ORDER BY execute_at`,
		executionID)
}

func (r *DelayRepository) ListPending(ctx context.Context, limit int) ([]*models.DelayRecord, error) {
	return r.query(ctx,
		`SELECT `+delayColumns+` FROM delay_records WHERE status = 'pending' ORDER BY execute_at LIMIT $1`,
		queryLimit(limit))
}

func (r *DelayRepository) Due(ctx context.Context, now, reclaimBefore time.Time, limit int) ([]*models.DelayRecord, error) {
	query := `
		SELECT ` + delayColumns + `
		FROM delay_records
		WHERE (status = 'pending' AND execute_at <= $1)
		   OR (status = 'processing' AND claimed_at < $2)
		ORDER BY execute_at
		LIMIT $3
	`

	return r.query(ctx, query, now, reclaimBefore, queryLimit(limit))
}

func (r *DelayRepository) Claim(ctx context.Context, id, claimedBy string, reclaimBefore time.Time) (bool, error) {
	query := `
		UPDATE delay_records
		SET status = 'processing', claimed_by = $2, claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		  AND (status = 'pending' OR (status = 'processing' AND claimed_at < $3))
	`

	result, err := r.db.ExecContext(ctx, query, id, claimedBy, reclaimBefore)
	if err != nil {
		return false, fmt.Errorf("failed to claim delay record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return affected == 1, nil
}

func (r *DelayRepository) Complete(ctx context.Context, id string, resultValue any) error {
	resultJSON, err := json.Marshal(resultValue)
	if err != nil {
		return fmt.Errorf("failed to marshal delay result: %w", err)
	}

	return r.transition(ctx, id,
		`UPDATE delay_records
		 SET status = 'executed', result = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		resultJSON)
}

func (r *DelayRepository) Fail(ctx context.Context, id string, errorMessage string) error {
	return r.transition(ctx, id,
		`UPDATE delay_records
		 SET status = 'failed', error_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		errorMessage)
}

func (r *DelayRepository) Cancel(ctx context.Context, id string) error {
	return r.transition(ctx, id,
		`UPDATE delay_records
		 SET status = 'cancelled', updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'processing')`)
}

func (r *DelayRepository) transition(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update delay record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrNotClaimable
	}

	return nil
}

func (r *DelayRepository) query(ctx context.Context, query string, args ...any) ([]*models.DelayRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delay records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*models.DelayRecord

	for rows.Next() {
		record, err := scanDelayRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delay record: %w", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelayRecord(row rowScanner) (*models.DelayRecord, error) {
	var (
		record        models.DelayRecord
		durationMs    int64
		contextJSON   []byte
		remainingJSON []byte
		resultJSON    []byte
		errorMessage  sql.NullString
		claimedBy     sql.NullString
		claimedAt     sql.NullTime
	)

	err := row.Scan(
		&record.ID,
		&record.ExecutionID,
		&record.WorkflowID,
		&record.StepID,
		&record.DelayType,
		&durationMs,
		&record.ScheduledAt,
		&record.ExecuteAt,
		&record.Status,
		&contextJSON,
		&remainingJSON,
		&resultJSON,
		&errorMessage,
		&claimedBy,
		&claimedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Duration = time.Duration(durationMs) * time.Millisecond
	record.ErrorMessage = errorMessage.String
	record.ClaimedBy = claimedBy.String

	if claimedAt.Valid {
		record.ClaimedAt = &claimedAt.Time
	}

	if len(contextJSON) > 0 {
		err = json.Unmarshal(contextJSON, &record.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal delay context: %w", err)
		}
	}

	if len(remainingJSON) > 0 {
		err = json.Unmarshal(remainingJSON, &record.Remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal delay continuation: %w", err)
		}
	}

	if len(resultJSON) > 0 {
		err = json.Unmarshal(resultJSON, &record.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal delay result: %w", err)
		}
	}

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func queryLimit(limit int) int {
	if limit <= 0 {
		return 100
	}

	return limit
}
