package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaykit/journey/pkg/engine"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

const (
	// DefaultClaimGrace is how long a processing claim is honored before
	// another sweeper may take it over after a crash.
	DefaultClaimGrace = 15 * time.Minute

	// DefaultDelayBatchSize caps how many due records one sweep picks up.
	DefaultDelayBatchSize = 100
)

// DelaySweeper resumes due delay records. Each record is claimed with an
// atomic conditional update before resumption, so overlapping sweeps on
// different instances resume a record at most once.
type DelaySweeper struct {
	persistence persistence.Persistence
	coordinator *engine.Coordinator
	pool        *Pool
	logger      *slog.Logger

	workerID   string
	claimGrace time.Duration
	batchSize  int
}

func NewDelaySweeper(p persistence.Persistence, coordinator *engine.Coordinator, pool *Pool, logger *slog.Logger, workerID string) *DelaySweeper {
	return &DelaySweeper{
		persistence: p,
		coordinator: coordinator,
		pool:        pool,
		logger:      logger.With("module", "delay_sweeper"),
		workerID:    workerID,
		claimGrace:  DefaultClaimGrace,
		batchSize:   DefaultDelayBatchSize,
	}
}

// Sweep claims and resumes every due record it can. Claim losses are normal
// under multi-instance operation and are skipped silently.
func (s *DelaySweeper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	reclaimBefore := now.Add(-s.claimGrace)

	due, err := s.persistence.Delays().Due(ctx, now, reclaimBefore, s.batchSize)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Info("Sweeping due delay records", "count", len(due))

	for _, record := range due {
		claimed, err := s.persistence.Delays().Claim(ctx, record.ID, s.workerID, reclaimBefore)
		if err != nil {
			s.logger.Error("Failed to claim delay record",
				"delay_id", record.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		record.Status = models.DelayProcessing
		record.ClaimedBy = s.workerID
		claimedAt := now
		record.ClaimedAt = &claimedAt

		delay := record

		err = s.pool.Submit(ctx, func(taskCtx context.Context) {
			err := s.coordinator.Resume(taskCtx, delay)
			if err != nil {
				s.logger.Error("Failed to resume execution",
					"delay_id", delay.ID,
					"execution_id", delay.ExecutionID,
					"error", err)
			}
		})
		if err != nil {
			// The claim stays in processing; the grace period returns the
			// record to a later sweep.
			return err
		}
	}

	return nil
}
