// Package interpreter implements the recursive rule-tree evaluator.
package interpreter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relaykit/journey/pkg/condition"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/registry"
)

// Outcome is the result of evaluating one node (and its subtree).
//
// Suspension is non-nil when a delay node was reached on the sequential
// path: evaluation stopped and the carried continuation describes what still
// has to run. BranchSuspensions collects delays reached inside parallel
// branches, which suspend only their own branch and never the surrounding
// combinator.
type Outcome struct {
	Value             any
	Suspension        *models.Suspension
	BranchSuspensions []*models.Suspension
}

// Suspended reports whether the sequential path was suspended.
func (o Outcome) Suspended() bool {
	return o.Suspension != nil
}

// Interpreter evaluates parsed rule trees against execution contexts. It is
// stateless and safe for concurrent use; all per-execution state lives in
// the context, the trace, and the outcome.
type Interpreter struct {
	registry   *registry.Registry
	conditions *condition.Evaluator
	logger     *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		registry:   reg,
		conditions: condition.NewEvaluator(),
		logger:     logger.With("module", "interpreter"),
	}
}

// Conditions exposes the comparison-leaf evaluator, e.g. for alias setup.
func (i *Interpreter) Conditions() *condition.Evaluator {
	return i.conditions
}

// Evaluate walks a rule node depth-first, appending per-node records to the
// trace. Dispatch follows the node's parsed kind; the parse already applied
// the priority order trigger > action > delay > conditional > logical >
// parallel > comparison leaf.
//
// A returned error is an engine fault: it is recorded on the trace and
// rethrown so the coordinator can fail the execution with the partial trace
// attached. Transient action failures are not errors; they surface as
// ExecutionResult values so sibling branches keep going.
func (i *Interpreter) Evaluate(ctx context.Context, node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	if node == nil {
		return Outcome{}, nil
	}

	switch node.Kind {
	case models.KindTrigger:
		return i.evaluateTrigger(ctx, node, execCtx, trace)
	case models.KindAction:
		return i.evaluateAction(ctx, node, execCtx, trace)
	case models.KindDelay:
		return i.evaluateDelay(node, trace)
	case models.KindConditional:
		return i.evaluateConditional(ctx, node, execCtx, trace)
	case models.KindLogical:
		return i.evaluateLogical(ctx, node, execCtx, trace)
	case models.KindParallel:
		return i.evaluateParallel(ctx, node, execCtx, trace)
	case models.KindComparison:
		return i.evaluateComparison(node, execCtx, trace)
	}

	return Outcome{}, fmt.Errorf("unrecognized rule node kind %q", node.Kind)
}

func (i *Interpreter) evaluateTrigger(ctx context.Context, node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	start := time.Now().UTC()
	execute := i.triggerPredicate(node.TriggerEvent, execCtx)

	trace.Append(models.StepTrace{
		NodeID:     node.ID,
		NodeType:   models.KindTrigger,
		Status:     models.StepCompleted,
		Result:     map[string]any{"event": node.TriggerEvent, "execute": execute},
		StartedAt:  start,
		FinishedAt: time.Now().UTC(),
	})

	if !execute {
		return Outcome{Value: map[string]any{"execute": false}}, nil
	}

	if node.TriggerBody == nil {
		return Outcome{Value: map[string]any{"execute": true}}, nil
	}

	return i.Evaluate(ctx, node.TriggerBody, execCtx, trace)
}

// triggerPredicate checks the trigger-kind specific entry condition.
// Unknown trigger kinds evaluate permissively to true; this preserves
// backward compatibility with existing rule trees and is reported as a
// warning by the rule-tree validator rather than failing here.
func (i *Interpreter) triggerPredicate(event string, execCtx *models.ExecutionContext) bool {
	data := contextData(execCtx)

	switch event {
	case "subscription":
		for _, field := range []string{"subscription", "subscription_id", "subscription_package"} {
			if v, ok := data[field]; ok && !isEmptyValue(v) {
				return true
			}
		}

		return false
	case "signup", "user_created":
		if execCtx.UserID != "" {
			return true
		}

		v, ok := data["user_id"]

		return ok && !isEmptyValue(v)
	default:
		i.logger.Warn("Unknown trigger kind, defaulting to execute",
			"event", event, "execution_id", execCtx.ID)

		return true
	}
}

func (i *Interpreter) evaluateAction(ctx context.Context, node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	start := time.Now().UTC()

	executor, ok := i.registry.Get(node.ActionType)
	if !ok {
		result := &models.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("action type %q not registered", node.ActionType),
		}

		trace.Append(models.StepTrace{
			NodeID:     node.ID,
			NodeType:   models.KindAction,
			Status:     models.StepFailed,
			Result:     result,
			Error:      result.Error,
			StartedAt:  start,
			FinishedAt: time.Now().UTC(),
		})

		return Outcome{Value: result}, nil
	}

	execCtx.SetMetadata("current_step", node.ID)

	result, err := executor.Execute(ctx, node, execCtx)
	if err != nil {
		trace.Append(models.StepTrace{
			NodeID:     node.ID,
			NodeType:   models.KindAction,
			Status:     models.StepFailed,
			Error:      err.Error(),
			StartedAt:  start,
			FinishedAt: time.Now().UTC(),
		})

		return Outcome{}, fmt.Errorf("action %s (%s) failed: %w", node.ID, node.ActionType, err)
	}

	if result == nil {
		result = &models.ExecutionResult{Success: true}
	}

	status := models.StepCompleted
	if !result.Success {
		status = models.StepFailed
	}

	trace.Append(models.StepTrace{
		NodeID:     node.ID,
		NodeType:   models.KindAction,
		Status:     status,
		Result:     result,
		Error:      result.Error,
		StartedAt:  start,
		FinishedAt: time.Now().UTC(),
	})

	return Outcome{Value: result}, nil
}

// evaluateDelay computes what to wait for and returns the suspension marker.
// It does not persist anything: separating "what to wait" from "how to
// persist the wait" keeps the interpreter stateless and re-entrant.
func (i *Interpreter) evaluateDelay(node *models.RuleNode, trace *models.Trace) (Outcome, error) {
	start := time.Now().UTC()
	suspension := models.NewSuspension(node.ID, node.Delay, start)

	trace.Append(models.StepTrace{
		NodeID:   node.ID,
		NodeType: models.KindDelay,
		Status:   models.StepSuspended,
		Result: map[string]any{
			"delay_type": suspension.DelayType,
			"duration":   suspension.Duration.String(),
			"execute_at": suspension.ExecuteAt,
		},
		StartedAt:  start,
		FinishedAt: time.Now().UTC(),
	})

	return Outcome{
		Value:      map[string]any{"workflowSuspended": true, "execute_at": suspension.ExecuteAt},
		Suspension: suspension,
	}, nil
}

func (i *Interpreter) evaluateConditional(ctx context.Context, node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	for _, clause := range node.Clauses {
		condOut, err := i.Evaluate(ctx, clause.Condition, execCtx, trace)
		if err != nil {
			return Outcome{}, err
		}

		if condOut.Suspended() {
			return condOut, nil
		}

		if valueTruthy(condOut.Value) {
			return i.Evaluate(ctx, clause.Branch, execCtx, trace)
		}
	}

	if node.Else != nil {
		return i.Evaluate(ctx, node.Else, execCtx, trace)
	}

	// No clause matched and no trailing else: no branch executes.
	return Outcome{Value: map[string]any{"matched": false}}, nil
}

// evaluateLogical walks operands left to right. A suspension anywhere stops
// evaluation immediately and propagates upward with the not-yet-evaluated
// operands appended to its continuation. Falsy operands do not stop the
// walk: combinators double as sequencing constructs, so every operand's
// side effects run unless a delay intervenes.
func (i *Interpreter) evaluateLogical(ctx context.Context, node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	allTruthy := true
	anyTruthy := false

	var branchSuspensions []*models.Suspension

	for idx, operand := range node.Operands {
		if operand == nil {
			i.logger.Warn("Skipping null operand in logical node",
				"node_id", node.ID, "operator", node.Op, "position", idx)

			continue
		}

		out, err := i.Evaluate(ctx, operand, execCtx, trace)
		if err != nil {
			return Outcome{}, err
		}

		branchSuspensions = append(branchSuspensions, out.BranchSuspensions...)

		if out.Suspended() {
			out.Suspension.Remaining = append(out.Suspension.Remaining, rawNodes(node.Operands[idx+1:])...)

			return Outcome{
				Value:             out.Value,
				Suspension:        out.Suspension,
				BranchSuspensions: branchSuspensions,
			}, nil
		}

		if valueTruthy(out.Value) {
			anyTruthy = true
		} else {
			allTruthy = false
		}
	}

	satisfied := allTruthy
	if node.Op == models.OpOr {
		satisfied = anyTruthy
	}

	return Outcome{Value: satisfied, BranchSuspensions: branchSuspensions}, nil
}

// evaluateParallel fans out all branches concurrently once the trigger
// predicate holds. Suspensions inside a branch stay in that branch: they are
// collected for the coordinator to persist individually, never propagated
// across siblings. A failing branch is recorded on the trace and does not
// abort the others.
func (i *Interpreter) evaluateParallel(ctx context.Context, node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	if node.ParallelTrigger != nil {
		trigOut, err := i.Evaluate(ctx, node.ParallelTrigger, execCtx, trace)
		if err != nil {
			return Outcome{}, err
		}

		if trigOut.Suspended() {
			return trigOut, nil
		}

		if !valueTruthy(trigOut.Value) {
			return Outcome{Value: map[string]any{"executed": false}}, nil
		}
	}

	results := make([]any, len(node.Branches))
	suspensions := make([][]*models.Suspension, len(node.Branches))

	var wg sync.WaitGroup

	for idx, branch := range node.Branches {
		if branch == nil {
			i.logger.Warn("Skipping null parallel branch", "node_id", node.ID, "position", idx)

			continue
		}

		wg.Add(1)

		go func(idx int, branch *models.RuleNode) {
			defer wg.Done()

			out, err := i.Evaluate(ctx, branch, execCtx, trace)
			if err != nil {
				i.logger.Error("Parallel branch failed",
					"node_id", node.ID, "branch", branch.ID, "error", err)

				results[idx] = &models.ExecutionResult{Success: false, Error: err.Error()}

				return
			}

			results[idx] = out.Value

			if out.Suspension != nil {
				suspensions[idx] = append(suspensions[idx], out.Suspension)
			}

			suspensions[idx] = append(suspensions[idx], out.BranchSuspensions...)
		}(idx, branch)
	}

	wg.Wait()

	var collected []*models.Suspension
	for _, branchSuspensions := range suspensions {
		collected = append(collected, branchSuspensions...)
	}

	return Outcome{
		Value:             map[string]any{"executed": true, "results": results},
		BranchSuspensions: collected,
	}, nil
}

func (i *Interpreter) evaluateComparison(node *models.RuleNode, execCtx *models.ExecutionContext, trace *models.Trace) (Outcome, error) {
	start := time.Now().UTC()

	matched, err := i.conditions.Evaluate(node.Comparison, contextData(execCtx))
	if err != nil {
		trace.Append(models.StepTrace{
			NodeID:     node.ID,
			NodeType:   models.KindComparison,
			Status:     models.StepFailed,
			Error:      err.Error(),
			StartedAt:  start,
			FinishedAt: time.Now().UTC(),
		})

		return Outcome{}, fmt.Errorf("comparison %s failed: %w", node.ID, err)
	}

	trace.Append(models.StepTrace{
		NodeID:     node.ID,
		NodeType:   models.KindComparison,
		Status:     models.StepCompleted,
		Result:     map[string]any{"matched": matched},
		StartedAt:  start,
		FinishedAt: time.Now().UTC(),
	})

	return Outcome{Value: matched}, nil
}

// contextData flattens the context for condition evaluation: trigger data at
// the top level, entity data filling gaps, plus entity/metadata/user_id
// namespaces for dotted-path lookups.
func contextData(execCtx *models.ExecutionContext) map[string]any {
	data := make(map[string]any, len(execCtx.TriggerData)+4)

	for k, v := range execCtx.TriggerData {
		data[k] = v
	}

	if execCtx.Entity != nil {
		for k, v := range execCtx.Entity.Data {
			if _, exists := data[k]; !exists {
				data[k] = v
			}
		}

		data["entity"] = map[string]any{
			"id":   execCtx.Entity.ID,
			"type": execCtx.Entity.Type,
			"data": execCtx.Entity.Data,
		}
	}

	if metadata := execCtx.MetadataSnapshot(); metadata != nil {
		data["metadata"] = metadata
	}

	if execCtx.UserID != "" {
		data["user_id"] = execCtx.UserID
	}

	return data
}

// valueTruthy decides how combinators weigh an operand outcome: structured
// action results count by success, trigger results by their execute flag,
// everything else by the false/nil rule.
func valueTruthy(v any) bool {
	switch t := v.(type) {
	case *models.ExecutionResult:
		return t.Truthy()
	case map[string]any:
		if execute, ok := t["execute"].(bool); ok {
			return execute
		}

		return true
	}

	return condition.Truthy(v)
}

func rawNodes(nodes []*models.RuleNode) []map[string]any {
	raws := make([]map[string]any, 0, len(nodes))

	for _, node := range nodes {
		if node == nil {
			continue
		}

		raws = append(raws, node.Raw)
	}

	return raws
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}

	return false
}
