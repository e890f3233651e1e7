package file

import (
	"context"
	"sort"
	"time"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

const delayCollection = "delays"

// DelayRepository stores delay records as JSON files. All status
// transitions run under the persistence mutex, which makes Claim atomic for
// every sweeper inside the process.
type DelayRepository struct {
	p *Persistence
}

func (r *DelayRepository) Save(ctx context.Context, record *models.DelayRecord) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record.UpdatedAt = time.Now().UTC()

	return r.p.write(delayCollection, record.ID, record)
}

func (r *DelayRepository) GetByID(ctx context.Context, id string) (*models.DelayRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.getLocked(id)
}

func (r *DelayRepository) getLocked(id string) (*models.DelayRecord, error) {
	var record models.DelayRecord

	found, err := r.p.read(delayCollection, id, &record)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrDelayNotFound
	}

	return &record, nil
}

func (r *DelayRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.DelayRecord, error) {
	return r.list(func(record *models.DelayRecord) bool {
		return record.ExecutionID == executionID
	}, 0)
}

func (r *DelayRepository) ListPending(ctx context.Context, limit int) ([]*models.DelayRecord, error) {
	return r.list(func(record *models.DelayRecord) bool {
		return record.Status == models.DelayPending
	}, limit)
}

func (r *DelayRepository) Due(ctx context.Context, now, reclaimBefore time.Time, limit int) ([]*models.DelayRecord, error) {
	return r.list(func(record *models.DelayRecord) bool {
		return record.Due(now) || record.Stale(reclaimBefore)
	}, limit)
}

func (r *DelayRepository) list(match func(*models.DelayRecord) bool, limit int) ([]*models.DelayRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	ids, err := r.p.ids(delayCollection)
	if err != nil {
		return nil, err
	}

	records := make([]*models.DelayRecord, 0, len(ids))

	for _, id := range ids {
		record, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if match(record) {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ExecuteAt.Before(records[j].ExecuteAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (r *DelayRepository) Claim(ctx context.Context, id, claimedBy string, reclaimBefore time.Time) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record, err := r.getLocked(id)
	if err != nil {
		return false, err
	}

	if record.Status != models.DelayPending && !record.Stale(reclaimBefore) {
		return false, nil
	}

	now := time.Now().UTC()
	record.Status = models.DelayProcessing
	record.ClaimedBy = claimedBy
	record.ClaimedAt = &now
	record.UpdatedAt = now

	return true, r.p.write(delayCollection, record.ID, record)
}

func (r *DelayRepository) Complete(ctx context.Context, id string, result any) error {
	return r.transition(id, models.DelayProcessing, func(record *models.DelayRecord) {
		record.Status = models.DelayExecuted
		record.Result = result
	})
}

func (r *DelayRepository) Fail(ctx context.Context, id string, errorMessage string) error {
	return r.transition(id, models.DelayProcessing, func(record *models.DelayRecord) {
		record.Status = models.DelayFailed
		record.ErrorMessage = errorMessage
	})
}

func (r *DelayRepository) Cancel(ctx context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record, err := r.getLocked(id)
	if err != nil {
		return err
	}

	// Cancellation is binding only before a terminal state.
	if record.Status != models.DelayPending && record.Status != models.DelayProcessing {
		return persistence.ErrNotClaimable
	}

	record.Status = models.DelayCancelled
	record.UpdatedAt = time.Now().UTC()

	return r.p.write(delayCollection, record.ID, record)
}

func (r *DelayRepository) transition(id string, from models.DelayStatus, apply func(*models.DelayRecord)) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record, err := r.getLocked(id)
	if err != nil {
		return err
	}

	if record.Status != from {
		return persistence.ErrNotClaimable
	}

	apply(record)
	record.UpdatedAt = time.Now().UTC()

	return r.p.write(delayCollection, record.ID, record)
}
