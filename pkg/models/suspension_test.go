package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDuration_Fixed(t *testing.T) {
	spec := &DelaySpec{Type: DelayFixed, Hours: 24}

	assert.Equal(t, 24*time.Hour, spec.ComputeDuration())
}

func TestComputeDuration_FixedFractionalHours(t *testing.T) {
	spec := &DelaySpec{Type: DelayFixed, Hours: 0.5}

	assert.Equal(t, 30*time.Minute, spec.ComputeDuration())
}

func TestComputeDuration_RandomWithinBounds(t *testing.T) {
	spec := &DelaySpec{Type: DelayRandom, MinHours: 1, MaxHours: 3}

	for range 100 {
		d := spec.ComputeDuration()
		assert.GreaterOrEqual(t, d, time.Hour)
		assert.Less(t, d, 3*time.Hour)
	}
}

func TestComputeDuration_RandomDegenerateRange(t *testing.T) {
	spec := &DelaySpec{Type: DelayRandom, MinHours: 2, MaxHours: 2}

	assert.Equal(t, 2*time.Hour, spec.ComputeDuration())
}

func TestComputeDuration_NegativeHoursClampToZero(t *testing.T) {
	spec := &DelaySpec{Type: DelayFixed, Hours: -1}

	assert.Equal(t, time.Duration(0), spec.ComputeDuration())
}

func TestComputeDuration_RandomNegativeBoundsClamp(t *testing.T) {
	spec := &DelaySpec{Type: DelayRandom, MinHours: -2, MaxHours: 1}

	for range 100 {
		d := spec.ComputeDuration()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Hour)
	}
}

func TestNewSuspension_NegativeDelayExecutesImmediately(t *testing.T) {
	scheduledAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	suspension := NewSuspension("node-1", &DelaySpec{Type: DelayFixed, Hours: -1}, scheduledAt)

	// ExecuteAt never precedes ScheduledAt, whatever the spec says.
	assert.Equal(t, scheduledAt, suspension.ExecuteAt)
	assert.Equal(t, time.Duration(0), suspension.Duration)
}

func TestNewSuspension_ExecuteAt(t *testing.T) {
	scheduledAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	suspension := NewSuspension("node-1", &DelaySpec{Type: DelayFixed, Hours: 2}, scheduledAt)

	assert.Equal(t, "node-1", suspension.NodeID)
	assert.Equal(t, scheduledAt.Add(2*time.Hour), suspension.ExecuteAt)
	assert.Equal(t, 2*time.Hour, suspension.Duration)
}

func TestDelayRecord_Lifecycle(t *testing.T) {
	execCtx := NewExecutionContext("wf-1", "subscription", "sub-1", "user-1", nil)
	suspension := NewSuspension("node-1", &DelaySpec{Type: DelayFixed, Hours: 1}, time.Now().UTC())
	record := NewDelayRecord(suspension, execCtx)

	require.Equal(t, DelayPending, record.Status)
	assert.Equal(t, execCtx.ID, record.ExecutionID)
	assert.Equal(t, "wf-1", record.WorkflowID)
	assert.False(t, record.Due(time.Now().UTC()))
	assert.True(t, record.Due(time.Now().UTC().Add(2*time.Hour)))

	claimedAt := time.Now().UTC().Add(-time.Hour)
	record.Status = DelayProcessing
	record.ClaimedAt = &claimedAt
	assert.True(t, record.Stale(time.Now().UTC().Add(-15*time.Minute)))
	assert.False(t, record.Stale(time.Now().UTC().Add(-2*time.Hour)))
}
