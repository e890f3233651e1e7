package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DelayStatus is the state of a durable suspension record.
//
// pending -> processing -> executed | failed, with cancelled reachable from
// pending or processing by external request. A record that has left pending
// is never re-executed, except that a processing claim older than the
// sweeper's grace period may be re-claimed after a crash.
type DelayStatus string

const (
	DelayPending    DelayStatus = "pending"
	DelayProcessing DelayStatus = "processing"
	DelayExecuted   DelayStatus = "executed"
	DelayCancelled  DelayStatus = "cancelled"
	DelayFailed     DelayStatus = "failed"
)

// DelayRecord is the durable marker for a suspended execution. It carries
// the full serialized ExecutionContext, not just an id: the engine must be
// able to resume without re-querying the triggering entity, whose live state
// may have changed in the meantime.
type DelayRecord struct {
	ID           string            `json:"id"`
	ExecutionID  string            `json:"execution_id"`
	WorkflowID   string            `json:"workflow_id"`
	StepID       string            `json:"step_id"`
	DelayType    DelayType         `json:"delay_type"`
	Duration     time.Duration     `json:"duration"`
	ScheduledAt  time.Time         `json:"scheduled_at"`
	ExecuteAt    time.Time         `json:"execute_at"`
	Status       DelayStatus       `json:"status"`
	Context      *ExecutionContext `json:"context"`
	Remaining    []map[string]any  `json:"remaining,omitempty"`
	Result       any               `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ClaimedBy    string            `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time        `json:"claimed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewDelayRecord builds a pending record from a suspension outcome and the
// context it suspended.
func NewDelayRecord(suspension *Suspension, execCtx *ExecutionContext) *DelayRecord {
	now := time.Now().UTC()

	return &DelayRecord{
		ID:          fmt.Sprintf("delay-%s", uuid.New().String()),
		ExecutionID: execCtx.ID,
		WorkflowID:  execCtx.WorkflowID,
		StepID:      suspension.NodeID,
		DelayType:   suspension.DelayType,
		Duration:    suspension.Duration,
		ScheduledAt: suspension.ScheduledAt,
		ExecuteAt:   suspension.ExecuteAt,
		Status:      DelayPending,
		Context:     execCtx,
		Remaining:   suspension.Remaining,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Due reports whether the record is eligible for resumption at the given
// time: still pending and past its execute-at mark.
func (d *DelayRecord) Due(now time.Time) bool {
	return d.Status == DelayPending && !d.ExecuteAt.After(now)
}

// Stale reports whether a processing claim is older than the grace cutoff
// and may be re-claimed by another sweeper.
func (d *DelayRecord) Stale(cutoff time.Time) bool {
	return d.Status == DelayProcessing && d.ClaimedAt != nil && d.ClaimedAt.Before(cutoff)
}
