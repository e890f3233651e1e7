package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/testutil"
)

func TestExecute_RendersMessage(t *testing.T) {
	executor := NewExecutor(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	step := models.ParseRuleNode(map[string]any{
		"action": "log",
		"details": map[string]any{
			"message": "package is {{.trigger_data.subscription_package}}",
		},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	require.True(t, result.Success)

	output, ok := result.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "package is premium", output["message"])
	assert.Equal(t, true, output["logged"])
}

func TestExecute_BadTemplateIsATransientFailure(t *testing.T) {
	executor := NewExecutor(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	step := models.ParseRuleNode(map[string]any{
		"action": "log",
		"details": map[string]any{
			"message": "{{.unclosed",
		},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to render")
}

func TestValidate(t *testing.T) {
	executor := NewExecutor(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	tests := []struct {
		name      string
		details   map[string]any
		wantValid bool
	}{
		{"valid", map[string]any{"message": "hi", "level": "info"}, true},
		{"missing_message", map[string]any{"level": "info"}, false},
		{"bad_level", map[string]any{"message": "hi", "level": "verbose"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := models.ParseRuleNode(map[string]any{"action": "log", "details": tt.details})

			result := executor.Validate(step)
			assert.Equal(t, tt.wantValid, result.IsValid)
		})
	}
}
