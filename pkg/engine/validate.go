package engine

import (
	"fmt"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/registry"
)

// knownTriggerKinds are the trigger events with a specific entry predicate.
// Anything else still executes (permissively) but is flagged here.
var knownTriggerKinds = map[string]bool{
	"subscription": true,
	"signup":       true,
	"user_created": true,
}

// ValidateRuleTree statically checks a parsed rule tree against the executor
// registry. It collects every finding instead of stopping at the first:
// errors mark trees that cannot run correctly, warnings mark constructs that
// run but deserve author attention.
func ValidateRuleTree(root *models.RuleNode, reg *registry.Registry) *models.ValidationResult {
	result := models.Valid()

	if root == nil {
		result.AddError("rule tree is empty")

		return result
	}

	if root.Kind != models.KindTrigger {
		result.AddWarning(fmt.Sprintf("rule tree root %s is a %s node, not a trigger", root.ID, root.Kind))
	}

	validateNode(root, reg, result)

	return result
}

func validateNode(node *models.RuleNode, reg *registry.Registry, result *models.ValidationResult) {
	if node == nil {
		return
	}

	switch node.Kind {
	case models.KindTrigger:
		if !knownTriggerKinds[node.TriggerEvent] {
			result.AddWarning(fmt.Sprintf("trigger %s has unknown kind %q; it will always pass its entry predicate", node.ID, node.TriggerEvent))
		}

		validateNode(node.TriggerBody, reg, result)
	case models.KindAction:
		validateAction(node, reg, result)
	case models.KindDelay:
		validateDelay(node, result)
	case models.KindConditional:
		if len(node.Clauses) == 0 && node.Else == nil {
			result.AddError(fmt.Sprintf("conditional %s has no clauses", node.ID))
		}

		for _, clause := range node.Clauses {
			validateNode(clause.Condition, reg, result)
			validateNode(clause.Branch, reg, result)
		}

		validateNode(node.Else, reg, result)
	case models.KindLogical:
		if len(node.Operands) == 0 {
			result.AddError(fmt.Sprintf("logical %s (%s) has no operands", node.ID, node.Op))
		}

		for idx, operand := range node.Operands {
			if operand == nil {
				result.AddWarning(fmt.Sprintf("logical %s (%s) has a null operand at position %d", node.ID, node.Op, idx))

				continue
			}

			validateNode(operand, reg, result)
		}
	case models.KindParallel:
		if len(node.Branches) == 0 {
			result.AddError(fmt.Sprintf("parallel %s has no branches", node.ID))
		}

		validateNode(node.ParallelTrigger, reg, result)

		for idx, branch := range node.Branches {
			if branch == nil {
				result.AddWarning(fmt.Sprintf("parallel %s has a null branch at position %d", node.ID, idx))

				continue
			}

			validateNode(branch, reg, result)
		}
	case models.KindComparison:
		if len(node.Comparison) == 0 {
			result.AddWarning(fmt.Sprintf("comparison %s is empty and always matches", node.ID))
		}
	}
}

func validateAction(node *models.RuleNode, reg *registry.Registry, result *models.ValidationResult) {
	if node.ActionType == "" {
		result.AddError(fmt.Sprintf("action %s has no type", node.ID))

		return
	}

	executor, ok := reg.Get(node.ActionType)
	if !ok {
		result.AddWarning(fmt.Sprintf("action %s uses unregistered type %q; it will fail at runtime", node.ID, node.ActionType))

		return
	}

	result.Merge(executor.Validate(node))
}

func validateDelay(node *models.RuleNode, result *models.ValidationResult) {
	spec := node.Delay
	if spec == nil {
		result.AddError(fmt.Sprintf("delay %s has no specification", node.ID))

		return
	}

	switch spec.Type {
	case models.DelayFixed:
		if spec.Hours <= 0 {
			result.AddError(fmt.Sprintf("delay %s has non-positive duration %v hours", node.ID, spec.Hours))
		}
	case models.DelayRandom:
		if spec.MinHours < 0 {
			result.AddError(fmt.Sprintf("delay %s has negative minimum %v hours", node.ID, spec.MinHours))
		}

		if spec.MaxHours < spec.MinHours {
			result.AddError(fmt.Sprintf("delay %s has maximum %v below minimum %v", node.ID, spec.MaxHours, spec.MinHours))
		}
	default:
		result.AddError(fmt.Sprintf("delay %s has unknown type %q", node.ID, spec.Type))
	}
}
