// Package persistence provides the storage abstraction for the execution
// engine's durable state: workflow definitions, delay records, watermarks,
// execution history and trigger entities.
package persistence

import (
	"context"
	"time"

	"github.com/relaykit/journey/pkg/models"
)

// Persistence bundles the repositories of one storage backend.
type Persistence interface {
	Workflows() WorkflowRepository
	Delays() DelayRepository
	Watermarks() WatermarkRepository
	Executions() ExecutionRepository
	Entities() EntityRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository reads workflow definitions. Definitions are authored
// externally; the engine needs read access plus save for seeding.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListPublished(ctx context.Context) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// DelayRepository stores suspension records. Claim is the concurrency
// anchor: it must be an atomic conditional update so that two engine
// instances never resume the same record twice.
type DelayRepository interface {
	Save(ctx context.Context, record *models.DelayRecord) error
	GetByID(ctx context.Context, id string) (*models.DelayRecord, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.DelayRecord, error)
	ListPending(ctx context.Context, limit int) ([]*models.DelayRecord, error)

	// Due returns records eligible for resumption at now: pending records
	// past their execute-at mark, plus processing records whose claim is
	// older than reclaimBefore (crash recovery).
	Due(ctx context.Context, now, reclaimBefore time.Time, limit int) ([]*models.DelayRecord, error)

	// Claim transitions a record to processing for the named claimer. It
	// returns false when the record was already claimed, executed or
	// cancelled; a processing claim older than reclaimBefore may be taken
	// over.
	Claim(ctx context.Context, id, claimedBy string, reclaimBefore time.Time) (bool, error)

	Complete(ctx context.Context, id string, result any) error
	Fail(ctx context.Context, id string, errorMessage string) error
	Cancel(ctx context.Context, id string) error
}

// WatermarkRepository stores the per-(workflow, trigger type) batch
// watermarks. Advance must be monotonic and guarded by a uniqueness
// constraint on the pair so duplicate rows cannot diverge.
type WatermarkRepository interface {
	// Get returns the watermark or nil when none exists yet.
	Get(ctx context.Context, workflowID, triggerType string) (*models.ExecutionWatermark, error)

	// Advance moves the watermark forward. Moves to an earlier time are
	// ignored, keeping LastExecutionAt monotonically non-decreasing.
	Advance(ctx context.Context, workflowID, triggerType string, to time.Time) error
}

// ListExecutionsOptions filters execution history queries.
type ListExecutionsOptions struct {
	WorkflowID string
	Status     models.ExecutionStatus
	Since      time.Time
	Limit      int
}

// ExecutionRepository stores execution history for observability and retry
// queries.
type ExecutionRepository interface {
	Save(ctx context.Context, record *models.ExecutionRecord) error
	GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.ExecutionRecord, error)
}

// EntityRepository reads triggerable entities for the batch scheduler.
type EntityRepository interface {
	Save(ctx context.Context, entity *models.Entity) error

	// UnprocessedSince returns unprocessed entities of the given type in
	// the given state created after since, oldest first.
	UnprocessedSince(ctx context.Context, entityType, state string, since time.Time) ([]*models.Entity, error)

	MarkProcessed(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, at time.Time) error
}
