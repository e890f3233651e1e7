package file

import (
	"context"
	"sort"
	"time"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

const entityCollection = "entities"

// EntityRepository stores trigger entities as JSON files.
type EntityRepository struct {
	p *Persistence
}

func (r *EntityRepository) Save(ctx context.Context, entity *models.Entity) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.write(entityCollection, entity.ID, entity)
}

func (r *EntityRepository) UnprocessedSince(ctx context.Context, entityType, state string, since time.Time) ([]*models.Entity, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	ids, err := r.p.ids(entityCollection)
	if err != nil {
		return nil, err
	}

	entities := make([]*models.Entity, 0, len(ids))

	for _, id := range ids {
		entity, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if entity.Type != entityType || entity.Processed() {
			continue
		}

		if state != "" && entity.State != state {
			continue
		}

		if !entity.CreatedAt.After(since) {
			continue
		}

		entities = append(entities, entity)
	}

	// Oldest first preserves trigger ordering within the batch.
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].CreatedAt.Before(entities[j].CreatedAt)
	})

	return entities, nil
}

func (r *EntityRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(entity *models.Entity) {
		entity.ProcessedAt = &at
	})
}

func (r *EntityRepository) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(entity *models.Entity) {
		entity.LastFailedAt = &at
	})
}

func (r *EntityRepository) getLocked(id string) (*models.Entity, error) {
	var entity models.Entity

	found, err := r.p.read(entityCollection, id, &entity)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrEntityNotFound
	}

	return &entity, nil
}

func (r *EntityRepository) update(id string, apply func(*models.Entity)) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	entity, err := r.getLocked(id)
	if err != nil {
		return err
	}

	apply(entity)

	return r.p.write(entityCollection, entity.ID, entity)
}
