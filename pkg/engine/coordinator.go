// Package engine coordinates workflow executions: it drives the interpreter,
// persists suspensions and execution history, and emits lifecycle events.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/relaykit/journey/pkg/eventbus"
	"github.com/relaykit/journey/pkg/events"
	"github.com/relaykit/journey/pkg/interpreter"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/otelhelper"
	"github.com/relaykit/journey/pkg/persistence"
)

// Coordinator owns the lifecycle of executions around the stateless
// interpreter: it creates the execution record, persists every suspension as
// a durable delay record, and finalizes the record with its trace when the
// walk ends.
type Coordinator struct {
	persistence persistence.Persistence
	interp      *interpreter.Interpreter
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	workerID    string
}

func NewCoordinator(p persistence.Persistence, interp *interpreter.Interpreter, publisher eventbus.EventPublisher, tracer trace.Tracer, logger *slog.Logger, workerID string) *Coordinator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("journey")
	}

	return &Coordinator{
		persistence: p,
		interp:      interp,
		publisher:   publisher,
		tracer:      tracer,
		logger:      logger.With("module", "coordinator"),
		workerID:    workerID,
	}
}

// Interpreter exposes the underlying evaluator, e.g. for validation setup.
func (c *Coordinator) Interpreter() *interpreter.Interpreter {
	return c.interp
}

// Start runs a workflow from its root for the given context. It returns the
// finalized execution record; engine faults are folded into the record as a
// failed status with the partial trace attached and also returned as an
// error so the caller can count them.
func (c *Coordinator) Start(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext) (*models.ExecutionRecord, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "execution.start",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
		attribute.String(otelhelper.TriggerTypeKey, execCtx.TriggerType),
	)
	defer span.End()

	start := time.Now().UTC()

	record := &models.ExecutionRecord{
		ID:          execCtx.ID,
		WorkflowID:  workflow.ID,
		TriggerType: execCtx.TriggerType,
		TriggerID:   execCtx.TriggerID,
		UserID:      execCtx.UserID,
		Status:      models.ExecutionRunning,
		CreatedAt:   start,
		UpdatedAt:   start,
	}

	err := c.persistence.Executions().Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	c.publish(ctx, execCtx.ID, events.ExecutionStarted{
		BaseEvent:   c.baseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID: execCtx.ID,
		TriggerType: execCtx.TriggerType,
		TriggerID:   execCtx.TriggerID,
		TriggerData: execCtx.TriggerData,
	})

	root := workflow.RuleNode()
	if root == nil {
		return c.fail(ctx, record, nil, start, fmt.Errorf("workflow %s has no rule tree", workflow.ID))
	}

	execTrace := models.NewTrace()

	outcome, err := c.interp.Evaluate(ctx, root, execCtx, execTrace)
	if err != nil {
		otelhelper.SetError(span, err)

		return c.fail(ctx, record, execTrace, start, err)
	}

	return c.settle(ctx, record, execCtx, execTrace, outcome, start)
}

// Resume continues a claimed delay record: the persisted continuation is
// re-parsed into a rule node and evaluated with the restored context. Only
// the remaining nodes run; everything before the delay is never replayed.
func (c *Coordinator) Resume(ctx context.Context, delay *models.DelayRecord) error {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "execution.resume",
		attribute.String(otelhelper.WorkflowIDKey, delay.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, delay.ExecutionID),
		attribute.String(otelhelper.DelayIDKey, delay.ID),
	)
	defer span.End()

	if delay.Status != models.DelayProcessing {
		return fmt.Errorf("delay %s is not claimed for processing (status %s)", delay.ID, delay.Status)
	}

	if delay.Context == nil {
		err := fmt.Errorf("delay %s has no execution context snapshot", delay.ID)
		otelhelper.SetError(span, err)

		return c.failDelay(ctx, delay, err)
	}

	c.publish(ctx, delay.ExecutionID, events.ExecutionResumed{
		BaseEvent:   c.baseEvent(events.ExecutionResumedEvent, delay.WorkflowID),
		ExecutionID: delay.ExecutionID,
		DelayID:     delay.ID,
		ResumedBy:   c.workerID,
	})

	start := time.Now().UTC()
	execTrace := models.NewTrace()
	outcome := interpreter.Outcome{Value: map[string]any{"resumed": true}}

	continuation := continuationNode(delay.Remaining)
	if continuation != nil {
		var err error

		outcome, err = c.interp.Evaluate(ctx, continuation, delay.Context, execTrace)
		if err != nil {
			otelhelper.SetError(span, err)

			record, loadErr := c.persistence.Executions().GetByID(ctx, delay.ExecutionID)
			if loadErr == nil {
				_, _ = c.fail(ctx, record, execTrace, start, err)
			}

			return c.failDelay(ctx, delay, err)
		}
	}

	err := c.persistence.Delays().Complete(ctx, delay.ID, outcome.Value)
	if err != nil {
		return fmt.Errorf("failed to complete delay %s: %w", delay.ID, err)
	}

	record, err := c.persistence.Executions().GetByID(ctx, delay.ExecutionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", delay.ExecutionID, err)
	}

	record.Steps = append(record.Steps, execTrace.Steps()...)

	_, err = c.settleResumed(ctx, record, delay.Context, outcome, start)

	return err
}

// Cancel stops an execution: every pending or processing delay is cancelled
// and the execution record goes terminal. Cancelling a terminal execution is
// rejected.
func (c *Coordinator) Cancel(ctx context.Context, executionID, reason, cancelledBy string) error {
	record, err := c.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if record.Status.Terminal() {
		return fmt.Errorf("execution %s is already %s", executionID, record.Status)
	}

	delays, err := c.persistence.Delays().ListByExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to list delays for execution %s: %w", executionID, err)
	}

	for _, delay := range delays {
		if delay.Status != models.DelayPending && delay.Status != models.DelayProcessing {
			continue
		}

		err = c.persistence.Delays().Cancel(ctx, delay.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel delay %s: %w", delay.ID, err)
		}
	}

	now := time.Now().UTC()
	record.Status = models.ExecutionCancelled
	record.CompletedAt = &now

	err = c.persistence.Executions().Save(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to save cancelled execution: %w", err)
	}

	c.publish(ctx, executionID, events.ExecutionCancelled{
		BaseEvent:   c.baseEvent(events.ExecutionCancelledEvent, record.WorkflowID),
		ExecutionID: executionID,
		Reason:      reason,
		CancelledBy: cancelledBy,
	})

	return nil
}

// settle finalizes a fresh execution after its first interpreter walk.
func (c *Coordinator) settle(ctx context.Context, record *models.ExecutionRecord, execCtx *models.ExecutionContext, execTrace *models.Trace, outcome interpreter.Outcome, start time.Time) (*models.ExecutionRecord, error) {
	record.Steps = execTrace.Steps()

	suspensions := outcome.BranchSuspensions
	if outcome.Suspension != nil {
		suspensions = append([]*models.Suspension{outcome.Suspension}, suspensions...)
	}

	if len(suspensions) > 0 {
		err := c.suspend(ctx, record, execCtx, suspensions, outcome.Suspension)
		if err != nil {
			return nil, err
		}

		return record, nil
	}

	return c.complete(ctx, record, outcome.Value, start)
}

// settleResumed finalizes an execution after a continuation walk. The
// execution completes only when no other delay for it is still outstanding,
// which matters for parallel branches suspended independently.
func (c *Coordinator) settleResumed(ctx context.Context, record *models.ExecutionRecord, execCtx *models.ExecutionContext, outcome interpreter.Outcome, start time.Time) (*models.ExecutionRecord, error) {
	suspensions := outcome.BranchSuspensions
	if outcome.Suspension != nil {
		suspensions = append([]*models.Suspension{outcome.Suspension}, suspensions...)
	}

	if len(suspensions) > 0 {
		err := c.suspend(ctx, record, execCtx, suspensions, outcome.Suspension)
		if err != nil {
			return nil, err
		}

		return record, nil
	}

	outstanding, err := c.outstandingDelays(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	if outstanding > 0 {
		record.Status = models.ExecutionSuspended

		err = c.persistence.Executions().Save(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("failed to save execution record: %w", err)
		}

		return record, nil
	}

	return c.complete(ctx, record, outcome.Value, start)
}

func (c *Coordinator) suspend(ctx context.Context, record *models.ExecutionRecord, execCtx *models.ExecutionContext, suspensions []*models.Suspension, sequential *models.Suspension) error {
	for _, suspension := range suspensions {
		delay := models.NewDelayRecord(suspension, execCtx)

		err := c.persistence.Delays().Save(ctx, delay)
		if err != nil {
			return fmt.Errorf("failed to persist delay record: %w", err)
		}

		c.logger.Info("Execution suspended",
			"execution_id", record.ID,
			"delay_id", delay.ID,
			"node_id", suspension.NodeID,
			"execute_at", suspension.ExecuteAt)

		c.publish(ctx, record.ID, events.DelayScheduled{
			BaseEvent:   c.baseEvent(events.DelayScheduledEvent, record.WorkflowID),
			ExecutionID: record.ID,
			DelayID:     delay.ID,
			NodeID:      suspension.NodeID,
			DelayType:   string(suspension.DelayType),
			ExecuteAt:   suspension.ExecuteAt,
		})

		if suspension == sequential {
			c.publish(ctx, record.ID, events.ExecutionSuspended{
				BaseEvent:   c.baseEvent(events.ExecutionSuspendedEvent, record.WorkflowID),
				ExecutionID: record.ID,
				DelayID:     delay.ID,
				NodeID:      suspension.NodeID,
				ExecuteAt:   suspension.ExecuteAt,
			})
		}
	}

	record.Status = models.ExecutionSuspended

	err := c.persistence.Executions().Save(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to save suspended execution: %w", err)
	}

	return nil
}

func (c *Coordinator) complete(ctx context.Context, record *models.ExecutionRecord, result any, start time.Time) (*models.ExecutionRecord, error) {
	now := time.Now().UTC()
	record.Status = models.ExecutionCompleted
	record.Result = result
	record.CompletedAt = &now

	err := c.persistence.Executions().Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to save completed execution: %w", err)
	}

	c.publish(ctx, record.ID, events.ExecutionCompleted{
		BaseEvent:   c.baseEvent(events.ExecutionCompletedEvent, record.WorkflowID),
		ExecutionID: record.ID,
		DurationMs:  now.Sub(start).Milliseconds(),
		StepsTraced: len(record.Steps),
		Result:      result,
	})

	return record, nil
}

func (c *Coordinator) fail(ctx context.Context, record *models.ExecutionRecord, execTrace *models.Trace, start time.Time, cause error) (*models.ExecutionRecord, error) {
	now := time.Now().UTC()
	record.Status = models.ExecutionFailed
	record.ErrorMessage = cause.Error()
	record.CompletedAt = &now

	if execTrace != nil {
		record.Steps = append(record.Steps, execTrace.Steps()...)
	}

	err := c.persistence.Executions().Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to save failed execution: %w", err)
	}

	c.publish(ctx, record.ID, events.ExecutionFailed{
		BaseEvent:   c.baseEvent(events.ExecutionFailedEvent, record.WorkflowID),
		ExecutionID: record.ID,
		Error:       cause.Error(),
		DurationMs:  now.Sub(start).Milliseconds(),
	})

	return record, cause
}

func (c *Coordinator) failDelay(ctx context.Context, delay *models.DelayRecord, cause error) error {
	err := c.persistence.Delays().Fail(ctx, delay.ID, cause.Error())
	if err != nil {
		c.logger.Error("Failed to mark delay as failed",
			"delay_id", delay.ID, "error", err)
	}

	return cause
}

func (c *Coordinator) outstandingDelays(ctx context.Context, executionID string) (int, error) {
	delays, err := c.persistence.Delays().ListByExecution(ctx, executionID)
	if err != nil {
		return 0, fmt.Errorf("failed to list delays for execution %s: %w", executionID, err)
	}

	outstanding := 0

	for _, delay := range delays {
		if delay.Status == models.DelayPending || delay.Status == models.DelayProcessing {
			outstanding++
		}
	}

	return outstanding, nil
}

func (c *Coordinator) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = c.workerID

	return base
}

// publish is best-effort: event delivery failures are logged, never allowed
// to fail the execution they describe.
func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	err := c.publisher.Publish(ctx, key, event)
	if err != nil {
		c.logger.Error("Failed to publish event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

// continuationNode rebuilds the rule node for a persisted continuation. A
// multi-element continuation becomes a conjunction so the remaining operands
// run in their original order.
func continuationNode(remaining []map[string]any) *models.RuleNode {
	switch len(remaining) {
	case 0:
		return nil
	case 1:
		return models.ParseRuleNode(remaining[0])
	}

	items := make([]any, 0, len(remaining))
	for _, raw := range remaining {
		items = append(items, raw)
	}

	return models.ParseRuleNode(map[string]any{"and": items})
}
