package signup

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrigger() *Trigger {
	return NewTrigger("wf-1", slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestValidate_RequiresUserID(t *testing.T) {
	trigger := newTestTrigger()

	valid := trigger.Validate(map[string]any{"user_id": "user-1", "email": "user@example.com"})
	assert.True(t, valid.IsValid)
	require.NotNil(t, valid.Context)

	invalid := trigger.Validate(map[string]any{"email": "user@example.com"})
	assert.False(t, invalid.IsValid)
	assert.Contains(t, invalid.Errors, "missing user_id")
}

func TestProcess_UserIsBothTriggerAndOwner(t *testing.T) {
	trigger := newTestTrigger()

	execCtx, err := trigger.Process(context.Background(), map[string]any{"user_id": "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "signup", execCtx.TriggerType)
	assert.Equal(t, "user-1", execCtx.TriggerID)
	assert.Equal(t, "user-1", execCtx.UserID)
	require.NotNil(t, execCtx.TriggerMeta)
	assert.Equal(t, "signup-service", execCtx.TriggerMeta.Source)
}

func TestShouldExecute_AlwaysTrue(t *testing.T) {
	trigger := newTestTrigger()

	execCtx, err := trigger.Process(context.Background(), map[string]any{"user_id": "user-1"})
	require.NoError(t, err)
	assert.True(t, trigger.ShouldExecute(execCtx))
}
