package models

import (
	"sync"
	"time"
)

// StepStatus is the terminal state of a single traced node evaluation.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSuspended StepStatus = "suspended"
	StepSkipped   StepStatus = "skipped"
)

// StepTrace is one entry of the ordered per-node execution log.
type StepTrace struct {
	NodeID     string     `json:"node_id"`
	NodeType   NodeKind   `json:"node_type"`
	Status     StepStatus `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Trace is the append-only ordered log of node evaluations for one
// execution. Appends are safe from parallel branches.
type Trace struct {
	mu    sync.Mutex
	steps []StepTrace
}

func NewTrace() *Trace {
	return &Trace{}
}

func (t *Trace) Append(step StepTrace) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.steps = append(t.steps, step)
}

// Steps returns a copy of the recorded entries in append order.
func (t *Trace) Steps() []StepTrace {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]StepTrace, len(t.steps))
	copy(out, t.steps)

	return out
}

// Find returns the first entry for the given node id.
func (t *Trace) Find(nodeID string) (StepTrace, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, step := range t.steps {
		if step.NodeID == nodeID {
			return step, true
		}
	}

	return StepTrace{}, false
}

// Len returns the number of recorded entries.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.steps)
}
