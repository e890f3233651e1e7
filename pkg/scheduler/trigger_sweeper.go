package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaykit/journey/pkg/engine"
	"github.com/relaykit/journey/pkg/eventbus"
	"github.com/relaykit/journey/pkg/events"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

const (
	// DefaultLookback seeds the watermark the first time a (workflow,
	// trigger type) pair is swept: entities older than this are never
	// picked up retroactively.
	DefaultLookback = time.Hour

	// DefaultRetryGrace keeps a recently failed entity out of the next
	// sweeps so a persistent failure cannot hot-loop.
	DefaultRetryGrace = 5 * time.Minute
)

// TriggerSweeper hands unprocessed entities off to the coordinator, batch by
// batch, advancing the per-(workflow, trigger type) watermark only when a
// full batch succeeded. A partial failure leaves the watermark where it was,
// so the failed entities are retried on the next sweep.
type TriggerSweeper struct {
	persistence persistence.Persistence
	coordinator *engine.Coordinator
	publisher   eventbus.EventPublisher
	logger      *slog.Logger

	workerID   string
	lookback   time.Duration
	retryGrace time.Duration
}

func NewTriggerSweeper(p persistence.Persistence, coordinator *engine.Coordinator, publisher eventbus.EventPublisher, logger *slog.Logger, workerID string) *TriggerSweeper {
	return &TriggerSweeper{
		persistence: p,
		coordinator: coordinator,
		publisher:   publisher,
		logger:      logger.With("module", "trigger_sweeper"),
		workerID:    workerID,
		lookback:    DefaultLookback,
		retryGrace:  DefaultRetryGrace,
	}
}

// Sweep processes one batch per published workflow.
func (s *TriggerSweeper) Sweep(ctx context.Context) error {
	workflows, err := s.persistence.Workflows().ListPublished(ctx)
	if err != nil {
		return err
	}

	for _, workflow := range workflows {
		triggerType := workflow.TriggerType()
		if triggerType == "" {
			continue
		}

		err = s.sweepWorkflow(ctx, workflow, triggerType)
		if err != nil {
			s.logger.Error("Trigger sweep failed for workflow",
				"workflow_id", workflow.ID,
				"trigger_type", triggerType,
				"error", err)
		}
	}

	return nil
}

func (s *TriggerSweeper) sweepWorkflow(ctx context.Context, workflow *models.Workflow, triggerType string) error {
	now := time.Now().UTC()

	since, previous, err := s.watermarkSince(ctx, workflow.ID, triggerType, now)
	if err != nil {
		return err
	}

	state, _ := workflow.Metadata["trigger_state"].(string)

	entities, err := s.persistence.Entities().UnprocessedSince(ctx, triggerType, state, since)
	if err != nil {
		return err
	}

	if len(entities) == 0 {
		return nil
	}

	succeeded, failed, skipped, latest := s.processBatch(ctx, workflow, triggerType, entities, now)

	// The watermark only moves past a batch that was handed off in full.
	// Skipped entities count against the batch: advancing past them would
	// drop them permanently.
	newWatermark := previous
	if failed == 0 && skipped == 0 && !latest.IsZero() {
		err = s.persistence.Watermarks().Advance(ctx, workflow.ID, triggerType, latest)
		if err != nil {
			return err
		}

		newWatermark = latest
	}

	s.logger.Info("Trigger batch processed",
		"workflow_id", workflow.ID,
		"trigger_type", triggerType,
		"batch_size", len(entities),
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped)

	if s.publisher != nil {
		base := events.NewBaseEvent(events.TriggerBatchProcessedEvent, workflow.ID)
		base.WorkerID = s.workerID

		err = s.publisher.Publish(ctx, workflow.ID, events.TriggerBatchProcessed{
			BaseEvent:    base,
			TriggerType:  triggerType,
			BatchSize:    len(entities),
			Succeeded:    succeeded,
			Failed:       failed,
			WatermarkOld: previous,
			WatermarkNew: newWatermark,
		})
		if err != nil {
			s.logger.Error("Failed to publish batch event",
				"workflow_id", workflow.ID, "error", err)
		}
	}

	return nil
}

func (s *TriggerSweeper) processBatch(ctx context.Context, workflow *models.Workflow, triggerType string, entities []*models.Entity, now time.Time) (succeeded, failed, skipped int, latest time.Time) {
	for _, entity := range entities {
		if entity.LastFailedAt != nil && now.Sub(*entity.LastFailedAt) < s.retryGrace {
			skipped++

			continue
		}

		execCtx := models.NewExecutionContext(workflow.ID, triggerType, entity.ID, entity.UserID, entity.Data)
		execCtx.Entity = &models.EntityData{
			ID:   entity.ID,
			Type: entity.Type,
			Data: entity.Data,
		}

		_, err := s.coordinator.Start(ctx, workflow, execCtx)
		if err != nil {
			failed++

			markErr := s.persistence.Entities().MarkFailed(ctx, entity.ID, now)
			if markErr != nil {
				s.logger.Error("Failed to mark entity as failed",
					"entity_id", entity.ID, "error", markErr)
			}

			continue
		}

		err = s.persistence.Entities().MarkProcessed(ctx, entity.ID, now)
		if err != nil {
			failed++

			s.logger.Error("Failed to mark entity as processed",
				"entity_id", entity.ID, "error", err)

			continue
		}

		succeeded++

		if entity.CreatedAt.After(latest) {
			latest = entity.CreatedAt
		}
	}

	return succeeded, failed, skipped, latest
}

// watermarkSince resolves where this sweep starts. A missing watermark
// defaults to a bounded lookback rather than all of history.
func (s *TriggerSweeper) watermarkSince(ctx context.Context, workflowID, triggerType string, now time.Time) (since, previous time.Time, err error) {
	watermark, err := s.persistence.Watermarks().Get(ctx, workflowID, triggerType)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if watermark == nil {
		fallback := now.Add(-s.lookback)

		return fallback, fallback, nil
	}

	return watermark.LastExecutionAt, watermark.LastExecutionAt, nil
}
