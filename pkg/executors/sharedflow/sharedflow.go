// Package sharedflow provides the step executor that runs a named sub-flow
// defined on the workflow.
package sharedflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaykit/journey/pkg/executors/schema"
	"github.com/relaykit/journey/pkg/interpreter"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

// Executor re-enters the interpreter on a shared flow. The sub-flow runs
// against the same execution context; its trace is folded into the step
// result.
//
// Delays inside shared flows are not supported: the continuation mechanism
// tracks positions in the root tree only, so a suspension here is an engine
// fault rather than a silent drop.
type Executor struct {
	workflows persistence.WorkflowRepository
	interp    *interpreter.Interpreter
	logger    *slog.Logger
}

func NewExecutor(workflows persistence.WorkflowRepository, interp *interpreter.Interpreter, logger *slog.Logger) *Executor {
	return &Executor{
		workflows: workflows,
		interp:    interp,
		logger:    logger.With("node_type", "shared_flow"),
	}
}

func (e *Executor) NodeType() string {
	return "shared_flow"
}

func (e *Executor) Dependencies() []string {
	return nil
}

func (e *Executor) Execute(ctx context.Context, step *models.RuleNode, execCtx *models.ExecutionContext) (*models.ExecutionResult, error) {
	name, _ := step.ActionDetails["flow"].(string)
	if name == "" {
		return &models.ExecutionResult{
			Success: false,
			Error:   "missing required field 'flow'",
		}, nil
	}

	workflow, err := e.workflows.GetByID(ctx, execCtx.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", execCtx.WorkflowID, err)
	}

	flowRaw, ok := workflow.SharedFlows[name]
	if !ok {
		return &models.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("workflow %s has no shared flow %q", workflow.ID, name),
		}, nil
	}

	flowNode := models.ParseRuleNode(flowRaw)
	if flowNode == nil {
		return &models.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("shared flow %q is empty", name),
		}, nil
	}

	subTrace := models.NewTrace()

	outcome, err := e.interp.Evaluate(ctx, flowNode, execCtx, subTrace)
	if err != nil {
		return nil, fmt.Errorf("shared flow %q failed: %w", name, err)
	}

	if outcome.Suspended() || len(outcome.BranchSuspensions) > 0 {
		return nil, fmt.Errorf("shared flow %q contains a delay, which is not supported in sub-flows", name)
	}

	e.logger.Info("Shared flow completed",
		"flow", name, "execution_id", execCtx.ID, "steps", subTrace.Len())

	return &models.ExecutionResult{
		Success: true,
		Result: map[string]any{
			"flow":  name,
			"value": outcome.Value,
			"steps": subTrace.Steps(),
		},
	}, nil
}

func (e *Executor) Validate(step *models.RuleNode) *models.ValidationResult {
	return schema.Validate(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flow": map[string]any{
				"type":        "string",
				"description": "Name of the shared flow defined on the workflow",
			},
		},
		"required": []string{"flow"},
	}, step.ActionDetails)
}
