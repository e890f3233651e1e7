package models

import "time"

// ExecutionWatermark marks how far trigger-batch processing has advanced for
// one (workflow, trigger type) pair. LastExecutionAt is monotonically
// non-decreasing and is advanced only after a full batch of retrieved
// entities has been handed off, never after a partial failure.
type ExecutionWatermark struct {
	WorkflowID      string    `json:"workflow_id"`
	TriggerType     string    `json:"trigger_type"`
	LastExecutionAt time.Time `json:"last_execution_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
