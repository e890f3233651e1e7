package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMetadata_ConcurrentWriters(t *testing.T) {
	execCtx := NewExecutionContext("wf-1", "subscription", "sub-1", "user-1", nil)

	var wg sync.WaitGroup

	for i := range 32 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			execCtx.SetMetadata(fmt.Sprintf("key-%d", i), i)
			execCtx.SetMetadata("current_step", fmt.Sprintf("step-%d", i))
			_ = execCtx.MetadataSnapshot()
		}(i)
	}

	wg.Wait()

	snapshot := execCtx.MetadataSnapshot()
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot, 33)
	assert.Contains(t, snapshot, "current_step")
}

func TestMetadataSnapshot_IsACopy(t *testing.T) {
	execCtx := NewExecutionContext("wf-1", "subscription", "sub-1", "user-1", nil)
	execCtx.SetMetadata("current_step", "step-1")

	snapshot := execCtx.MetadataSnapshot()
	snapshot["current_step"] = "mutated"

	assert.Equal(t, "step-1", execCtx.MetadataSnapshot()["current_step"])
}

func TestMetadataSnapshot_NilWhenUnset(t *testing.T) {
	execCtx := &ExecutionContext{ID: "exec-1"}

	assert.Nil(t, execCtx.MetadataSnapshot())
}
