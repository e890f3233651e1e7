package sharedflow

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/journey/pkg/interpreter"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence/file"
	"github.com/relaykit/journey/pkg/registry"
	"github.com/relaykit/journey/pkg/testutil"
)

func newTestExecutor(t *testing.T, workflow *models.Workflow) *Executor {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.Workflows().Save(context.Background(), workflow))

	reg := registry.NewRegistry(logger)
	interp := interpreter.New(reg, logger)

	executor := NewExecutor(p.Workflows(), interp, logger)
	reg.Register(executor)

	return executor
}

func flowStep(name string) *models.RuleNode {
	return models.ParseRuleNode(map[string]any{
		"action":  "shared_flow",
		"details": map[string]any{"flow": name},
	})
}

func TestExecute_RunsNamedFlow(t *testing.T) {
	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) {
		w.SharedFlows = map[string]map[string]any{
			"check-package": {
				"subscription_package": "premium",
			},
		}
	})
	executor := newTestExecutor(t, workflow)

	execCtx := testutil.CreateTestContext(func(c *models.ExecutionContext) {
		c.WorkflowID = workflow.ID
	})

	result, err := executor.Execute(context.Background(), flowStep("check-package"), execCtx)
	require.NoError(t, err)
	require.True(t, result.Success)

	output, ok := result.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "check-package", output["flow"])
	assert.Equal(t, true, output["value"])
}

func TestExecute_UnknownFlowIsATransientFailure(t *testing.T) {
	workflow := testutil.CreateTestWorkflow()
	executor := newTestExecutor(t, workflow)

	execCtx := testutil.CreateTestContext(func(c *models.ExecutionContext) {
		c.WorkflowID = workflow.ID
	})

	result, err := executor.Execute(context.Background(), flowStep("no-such-flow"), execCtx)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no shared flow")
}

func TestExecute_MissingFlowName(t *testing.T) {
	executor := newTestExecutor(t, testutil.CreateTestWorkflow())

	step := models.ParseRuleNode(map[string]any{
		"action":  "shared_flow",
		"details": map[string]any{},
	})

	result, err := executor.Execute(context.Background(), step, testutil.CreateTestContext())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "missing required field 'flow'")
}

func TestExecute_DelayInsideFlowIsAnEngineFault(t *testing.T) {
	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) {
		w.SharedFlows = map[string]map[string]any{
			"waiting": {
				"delay": map[string]any{"type": "fixed", "hours": 1.0},
			},
		}
	})
	executor := newTestExecutor(t, workflow)

	execCtx := testutil.CreateTestContext(func(c *models.ExecutionContext) {
		c.WorkflowID = workflow.ID
	})

	_, err := executor.Execute(context.Background(), flowStep("waiting"), execCtx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported in sub-flows")
}

func TestValidate_RequiresFlow(t *testing.T) {
	executor := newTestExecutor(t, testutil.CreateTestWorkflow())

	assert.True(t, executor.Validate(flowStep("check-package")).IsValid)

	invalid := executor.Validate(models.ParseRuleNode(map[string]any{
		"action":  "shared_flow",
		"details": map[string]any{},
	}))
	assert.False(t, invalid.IsValid)
}
