package models

import "time"

// ExecutionStatus is the observable state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSuspended ExecutionStatus = "suspended"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// ExecutionRecord is the durable observability record of one execution:
// every execution ends with a terminal status and a full ordered step trace
// sufficient to diagnose which node failed and why. Suspended executions
// keep their partial trace until resumption appends to it.
type ExecutionRecord struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	TriggerType  string          `json:"trigger_type"`
	TriggerID    string          `json:"trigger_id"`
	UserID       string          `json:"user_id,omitempty"`
	Status       ExecutionStatus `json:"status"`
	Result       any             `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Steps        []StepTrace     `json:"steps,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
