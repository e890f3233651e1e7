// Package events defines the lifecycle notifications emitted by the
// execution engine: execution start and terminal states, suspension and
// resumption, and trigger batch hand-offs.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "journey.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	DelayScheduledEvent EventType = "delay.scheduled"

	TriggerBatchProcessedEvent EventType = "trigger.batch.processed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TriggerType string         `json:"trigger_type"`
	TriggerID   string         `json:"trigger_id,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DurationMs  int64  `json:"duration_ms"`
	StepsTraced int    `json:"steps_traced"`
	Result      any    `json:"result,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	DelayID     string    `json:"delay_id"`
	NodeID      string    `json:"node_id"`
	ExecuteAt   time.Time `json:"execute_at"`
}

func (e ExecutionSuspended) GetType() EventType { return ExecutionSuspendedEvent }

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	DelayID     string `json:"delay_id"`
	ResumedBy   string `json:"resumed_by"`
}

func (e ExecutionResumed) GetType() EventType { return ExecutionResumedEvent }

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type DelayScheduled struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	DelayID     string    `json:"delay_id"`
	NodeID      string    `json:"node_id"`
	DelayType   string    `json:"delay_type"`
	ExecuteAt   time.Time `json:"execute_at"`
}

func (e DelayScheduled) GetType() EventType { return DelayScheduledEvent }

type TriggerBatchProcessed struct {
	BaseEvent

	TriggerType  string    `json:"trigger_type"`
	BatchSize    int       `json:"batch_size"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	WatermarkOld time.Time `json:"watermark_old"`
	WatermarkNew time.Time `json:"watermark_new"`
}

func (e TriggerBatchProcessed) GetType() EventType { return TriggerBatchProcessedEvent }
