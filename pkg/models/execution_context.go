package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntityData is the snapshot of the triggering entity carried by a context.
type EntityData struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// TriggerMetadata describes the trigger that produced a context.
type TriggerMetadata struct {
	Source    string `json:"source"`
	Version   string `json:"version"`
	Priority  string `json:"priority,omitempty"`
	Retryable bool   `json:"retryable"`
	TimeoutMs int64  `json:"timeout"`
}

// ExecutionMetadata carries correlation identifiers accumulated during
// execution.
type ExecutionMetadata struct {
	CorrelationID string            `json:"correlation_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ExecutionContext is the per-entity, per-workflow data bundle threaded
// through interpretation. It is immutable once created except for Metadata,
// which accumulates execution state (e.g. the current step).
type ExecutionContext struct {
	ID          string             `json:"id"`
	WorkflowID  string             `json:"workflow_id"  validate:"required"`
	TriggerType string             `json:"trigger_type" validate:"required"`
	TriggerID   string             `json:"trigger_id"`
	UserID      string             `json:"user_id"`
	TriggerData map[string]any     `json:"trigger_data,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Entity      *EntityData        `json:"entity,omitempty"`
	TriggerMeta *TriggerMetadata   `json:"trigger_metadata,omitempty"`
	ExecMeta    *ExecutionMetadata `json:"execution_metadata,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`

	// Guards Metadata: parallel branches of one execution write it
	// concurrently.
	metadataMu sync.Mutex
}

// NewExecutionContext creates a context with a fresh execution ID.
func NewExecutionContext(workflowID, triggerType, triggerID, userID string, triggerData map[string]any) *ExecutionContext {
	return &ExecutionContext{
		ID:          GenerateExecutionID(),
		WorkflowID:  workflowID,
		TriggerType: triggerType,
		TriggerID:   triggerID,
		UserID:      userID,
		TriggerData: triggerData,
		Metadata:    map[string]any{},
		CreatedAt:   time.Now().UTC(),
	}
}

// SetMetadata records a metadata value, allocating the map if needed.
func (c *ExecutionContext) SetMetadata(key string, value any) {
	c.metadataMu.Lock()
	defer c.metadataMu.Unlock()

	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}

	c.Metadata[key] = value
}

// MetadataSnapshot returns a copy of the metadata map that is safe to read
// while other branches keep writing. Returns nil when no metadata is set.
func (c *ExecutionContext) MetadataSnapshot() map[string]any {
	c.metadataMu.Lock()
	defer c.metadataMu.Unlock()

	if c.Metadata == nil {
		return nil
	}

	snapshot := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		snapshot[k] = v
	}

	return snapshot
}

// GenerateExecutionID returns a globally unique execution identifier.
func GenerateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String())
}
