package models

import (
	"math/rand"
	"time"
)

// Suspension is the first-class outcome of reaching a delay node. It is not
// an error: the interpreter reports what to wait for and the coordinator
// decides how to persist the wait.
type Suspension struct {
	NodeID      string           `json:"node_id"`
	DelayType   DelayType        `json:"delay_type"`
	Duration    time.Duration    `json:"duration"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	ExecuteAt   time.Time        `json:"execute_at"`
	Remaining   []map[string]any `json:"remaining,omitempty"`
}

// NewSuspension computes the delay duration for a spec and anchors it at the
// given time. ExecuteAt is always scheduledAt + duration.
func NewSuspension(nodeID string, spec *DelaySpec, scheduledAt time.Time) *Suspension {
	duration := spec.ComputeDuration()

	return &Suspension{
		NodeID:      nodeID,
		DelayType:   spec.Type,
		Duration:    duration,
		ScheduledAt: scheduledAt,
		ExecuteAt:   scheduledAt.Add(duration),
	}
}

// ComputeDuration resolves the spec into a concrete duration. A fixed spec
// yields exactly Hours; a random spec yields a uniform duration between
// MinHours and MaxHours inclusive of the lower bound. Negative hour values
// clamp to zero so ExecuteAt never precedes ScheduledAt, even for trees that
// skipped validation.
func (d *DelaySpec) ComputeDuration() time.Duration {
	switch d.Type {
	case DelayRandom:
		minD := hoursToDuration(d.MinHours)
		maxD := hoursToDuration(d.MaxHours)

		if maxD <= minD {
			return minD
		}

		return minD + time.Duration(rand.Int63n(int64(maxD-minD)))
	case DelayFixed:
		return hoursToDuration(d.Hours)
	}

	return hoursToDuration(d.Hours)
}

func hoursToDuration(hours float64) time.Duration {
	if hours <= 0 {
		return 0
	}

	return time.Duration(hours * float64(time.Hour))
}
