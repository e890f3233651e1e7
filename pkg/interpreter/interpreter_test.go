package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/registry"
	"github.com/relaykit/journey/pkg/testutil"
)

// fakeExecutor counts invocations and returns a configurable result.
type fakeExecutor struct {
	nodeType string
	calls    atomic.Int32
	result   *models.ExecutionResult
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, _ *models.RuleNode, _ *models.ExecutionContext) (*models.ExecutionResult, error) {
	f.calls.Add(1)

	return f.result, f.err
}

func (f *fakeExecutor) Validate(_ *models.RuleNode) *models.ValidationResult { return models.Valid() }
func (f *fakeExecutor) NodeType() string                                     { return f.nodeType }
func (f *fakeExecutor) Dependencies() []string                               { return nil }

func newTestInterpreter(t *testing.T, executors ...*fakeExecutor) *Interpreter {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	reg := registry.NewRegistry(logger)

	for _, executor := range executors {
		reg.Register(executor)
	}

	return New(reg, logger)
}

func TestEvaluate_ActionDispatch(t *testing.T) {
	executor := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true, Result: "ok"}}
	interp := newTestInterpreter(t, executor)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{"id": "step-1", "action": "log"})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.False(t, out.Suspended())
	assert.Equal(t, int32(1), executor.calls.Load())

	step, found := trace.Find("step-1")
	require.True(t, found)
	assert.Equal(t, models.StepCompleted, step.Status)
}

func TestEvaluate_UnregisteredActionIsNotAFault(t *testing.T) {
	interp := newTestInterpreter(t)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{"id": "step-1", "action": "missing"})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)

	result, ok := out.Value.(*models.ExecutionResult)
	require.True(t, ok)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not registered")

	step, found := trace.Find("step-1")
	require.True(t, found)
	assert.Equal(t, models.StepFailed, step.Status)
}

func TestEvaluate_ActionErrorIsAnEngineFault(t *testing.T) {
	executor := &fakeExecutor{nodeType: "log", err: errors.New("boom")}
	interp := newTestInterpreter(t, executor)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{"id": "step-1", "action": "log"})

	_, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	step, found := trace.Find("step-1")
	require.True(t, found)
	assert.Equal(t, models.StepFailed, step.Status)
}

func TestEvaluate_LogicalSuspensionCarriesContinuation(t *testing.T) {
	executor := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, executor)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"and": []any{
			map[string]any{"id": "before", "action": "log"},
			map[string]any{"id": "wait", "delay": map[string]any{"type": "fixed", "hours": 24.0}},
			map[string]any{"id": "after", "action": "log"},
			map[string]any{"id": "last", "action": "log"},
		},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	require.True(t, out.Suspended())

	// Only the operand before the delay ran.
	assert.Equal(t, int32(1), executor.calls.Load())

	require.Len(t, out.Suspension.Remaining, 2)
	assert.Equal(t, "after", out.Suspension.Remaining[0]["id"])
	assert.Equal(t, "last", out.Suspension.Remaining[1]["id"])

	step, found := trace.Find("wait")
	require.True(t, found)
	assert.Equal(t, models.StepSuspended, step.Status)
}

func TestEvaluate_FalsyOperandDoesNotStopTheWalk(t *testing.T) {
	executor := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, executor)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"and": []any{
			map[string]any{"subscription_package": "enterprise"},
			map[string]any{"id": "step-1", "action": "log"},
		},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)

	// The comparison was falsy but the action still ran; the combinator
	// result reflects the failed operand.
	assert.Equal(t, int32(1), executor.calls.Load())
	assert.Equal(t, false, out.Value)
}

func TestEvaluate_OrSatisfiedByAnyOperand(t *testing.T) {
	interp := newTestInterpreter(t)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"or": []any{
			map[string]any{"subscription_package": "enterprise"},
			map[string]any{"subscription_package": "premium"},
		},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.Equal(t, true, out.Value)
}

func TestEvaluate_ConditionalFirstMatchWins(t *testing.T) {
	premium := &fakeExecutor{nodeType: "premium_action", result: &models.ExecutionResult{Success: true}}
	basic := &fakeExecutor{nodeType: "basic_action", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, premium, basic)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"if": []any{
			map[string]any{"subscription_package": "premium"},
			map[string]any{"action": "premium_action"},
			map[string]any{"subscription_package": "basic"},
			map[string]any{"action": "basic_action"},
		},
	})

	_, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.Equal(t, int32(1), premium.calls.Load())
	assert.Equal(t, int32(0), basic.calls.Load())
}

func TestEvaluate_ConditionalElse(t *testing.T) {
	fallback := &fakeExecutor{nodeType: "fallback", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, fallback)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"if": []any{
			map[string]any{"subscription_package": "enterprise"},
			map[string]any{"action": "missing"},
			map[string]any{"action": "fallback"},
		},
	})

	_, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fallback.calls.Load())
}

func TestEvaluate_ConditionalNoMatchNoElse(t *testing.T) {
	interp := newTestInterpreter(t)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"if": []any{
			map[string]any{"subscription_package": "enterprise"},
			map[string]any{"action": "missing"},
			map[string]any{"subscription_package": "basic"},
			map[string]any{"action": "missing"},
		},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)

	value, ok := out.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, value["matched"])
}

func TestEvaluate_ParallelBranchSuspensionStaysInBranch(t *testing.T) {
	executor := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, executor)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"parallel": map[string]any{
			"branches": []any{
				map[string]any{"id": "wait", "delay": map[string]any{"type": "fixed", "hours": 1.0}},
				map[string]any{"id": "step-1", "action": "log"},
			},
		},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)

	// The delay suspended its own branch only; the sibling action ran and
	// the combinator itself did not suspend.
	assert.False(t, out.Suspended())
	require.Len(t, out.BranchSuspensions, 1)
	assert.Equal(t, "wait", out.BranchSuspensions[0].NodeID)
	assert.Equal(t, int32(1), executor.calls.Load())
}

func TestEvaluate_ParallelFailingBranchDoesNotAbortSiblings(t *testing.T) {
	failing := &fakeExecutor{nodeType: "failing", err: errors.New("boom")}
	healthy := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, failing, healthy)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"parallel": map[string]any{
			"branches": []any{
				map[string]any{"action": "failing"},
				map[string]any{"action": "log"},
			},
		},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.Equal(t, int32(1), healthy.calls.Load())

	value, ok := out.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, value["executed"])
}

func TestEvaluate_ParallelActionBranchesShareContextSafely(t *testing.T) {
	executor := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true}}
	interp := newTestInterpreter(t, executor)
	trace := models.NewTrace()

	// Every action branch records its step in the shared context metadata
	// while the comparison branch reads the same context concurrently.
	branches := []any{map[string]any{"subscription_package": "premium"}}
	for idx := range 16 {
		branches = append(branches, map[string]any{
			"id":     fmt.Sprintf("branch-%d", idx),
			"action": "log",
		})
	}

	node := models.ParseRuleNode(map[string]any{
		"parallel": map[string]any{"branches": branches},
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.Equal(t, int32(16), executor.calls.Load())

	value, ok := out.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, value["executed"])
}

func TestEvaluate_ComparisonAppendsTrace(t *testing.T) {
	interp := newTestInterpreter(t)
	trace := models.NewTrace()

	node := models.ParseRuleNode(map[string]any{
		"id":                   "check-package",
		"subscription_package": "enterprise",
	})

	out, err := interp.Evaluate(context.Background(), node, testutil.CreateTestContext(), trace)
	require.NoError(t, err)
	assert.Equal(t, false, out.Value)

	// A false comparison still leaves a trace record, so "no branch taken"
	// is diagnosable from the execution history.
	step, found := trace.Find("check-package")
	require.True(t, found)
	assert.Equal(t, models.StepCompleted, step.Status)

	result, ok := step.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, result["matched"])
}

func TestEvaluate_TriggerPredicate(t *testing.T) {
	tests := []struct {
		name        string
		raw         map[string]any
		triggerData map[string]any
		userID      string
		wantExecute bool
	}{
		{
			name:        "subscription_with_data",
			raw:         map[string]any{"trigger": "subscription"},
			triggerData: map[string]any{"subscription_id": "sub-1"},
			wantExecute: true,
		},
		{
			name:        "subscription_without_data",
			raw:         map[string]any{"trigger": "subscription"},
			triggerData: map[string]any{"unrelated": "x"},
			wantExecute: false,
		},
		{
			name:        "signup_with_user",
			raw:         map[string]any{"trigger": "signup"},
			triggerData: map[string]any{},
			userID:      "user-1",
			wantExecute: true,
		},
		{
			name:        "unknown_trigger_defaults_to_execute",
			raw:         map[string]any{"trigger": "churn"},
			triggerData: map[string]any{},
			wantExecute: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &fakeExecutor{nodeType: "log", result: &models.ExecutionResult{Success: true}}
			interp := newTestInterpreter(t, executor)
			trace := models.NewTrace()

			tt.raw["and"] = []any{map[string]any{"action": "log"}}
			node := models.ParseRuleNode(tt.raw)

			execCtx := models.NewExecutionContext("wf-1", node.TriggerEvent, "", tt.userID, tt.triggerData)

			_, err := interp.Evaluate(context.Background(), node, execCtx, trace)
			require.NoError(t, err)

			executed := executor.calls.Load() > 0
			assert.Equal(t, tt.wantExecute, executed)
		})
	}
}

func TestEvaluate_ComparisonSeesEntityData(t *testing.T) {
	interp := newTestInterpreter(t)
	trace := models.NewTrace()

	execCtx := testutil.CreateTestContext(testutil.WithTriggerData(map[string]any{
		"status": "active",
	}))
	execCtx.Entity = &models.EntityData{
		ID:   "entity-1",
		Type: "subscription",
		Data: map[string]any{"subscription_package": "basic"},
	}

	// subscription_package comes from the entity, status from trigger data.
	node := models.ParseRuleNode(map[string]any{
		"subscription_package": "basic",
		"status":               "active",
	})

	out, err := interp.Evaluate(context.Background(), node, execCtx, trace)
	require.NoError(t, err)
	assert.Equal(t, true, out.Value)
}

func TestEvaluate_NilNodeIsANoop(t *testing.T) {
	interp := newTestInterpreter(t)

	out, err := interp.Evaluate(context.Background(), nil, testutil.CreateTestContext(), models.NewTrace())
	require.NoError(t, err)
	assert.Nil(t, out.Value)
	assert.False(t, out.Suspended())
}
