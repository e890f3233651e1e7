package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

// EntityRepository reads triggerable entities for the batch sweeper.
type EntityRepository struct {
	db *sql.DB
}

func (r *EntityRepository) Save(ctx context.Context, entity *models.Entity) error {
	dataJSON, err := json.Marshal(entity.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal entity data: %w", err)
	}

	query := `
		INSERT INTO trigger_entities (id, entity_type, user_id, state, data, created_at, processed_at, last_failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			data = EXCLUDED.data,
			processed_at = EXCLUDED.processed_at,
			last_failed_at = EXCLUDED.last_failed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		entity.ID,
		entity.Type,
		nullString(entity.UserID),
		nullString(entity.State),
		dataJSON,
		entity.CreatedAt,
		entity.ProcessedAt,
		entity.LastFailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

func (r *EntityRepository) UnprocessedSince(ctx context.Context, entityType, state string, since time.Time) ([]*models.Entity, error) {
	query := `
		SELECT id, entity_type, user_id, state, data, created_at, processed_at, last_failed_at
		FROM trigger_entities
		WHERE entity_type = $1
		  AND processed_at IS NULL
		  AND created_at > $2
	`

	args := []any{entityType, since}

	if state != "" {
		args = append(args, state)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}

	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*models.Entity

	for rows.Next() {
		var (
			entity       models.Entity
			userID       sql.NullString
			entityState  sql.NullString
			dataJSON     []byte
			processedAt  sql.NullTime
			lastFailedAt sql.NullTime
		)

		err = rows.Scan(
			&entity.ID,
			&entity.Type,
			&userID,
			&entityState,
			&dataJSON,
			&entity.CreatedAt,
			&processedAt,
			&lastFailedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}

		entity.UserID = userID.String
		entity.State = entityState.String

		if processedAt.Valid {
			entity.ProcessedAt = &processedAt.Time
		}

		if lastFailedAt.Valid {
			entity.LastFailedAt = &lastFailedAt.Time
		}

		if len(dataJSON) > 0 {
			err = json.Unmarshal(dataJSON, &entity.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal entity data: %w", err)
			}
		}

		entities = append(entities, &entity)
	}

	return entities, rows.Err()
}

func (r *EntityRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.mark(ctx, `UPDATE trigger_entities SET processed_at = $2 WHERE id = $1`, id, at)
}

func (r *EntityRepository) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return r.mark(ctx, `UPDATE trigger_entities SET last_failed_at = $2 WHERE id = $1`, id, at)
}

func (r *EntityRepository) mark(ctx context.Context, query, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrEntityNotFound
	}

	return nil
}
