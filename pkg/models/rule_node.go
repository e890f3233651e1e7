// Package models defines the core domain models for the journey execution engine.
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeKind identifies which variant of the rule vocabulary a node carries.
type NodeKind string

const (
	KindTrigger     NodeKind = "trigger"
	KindAction      NodeKind = "action"
	KindDelay       NodeKind = "delay"
	KindConditional NodeKind = "conditional"
	KindLogical     NodeKind = "logical"
	KindParallel    NodeKind = "parallel"
	KindComparison  NodeKind = "comparison"
)

// LogicalOp is the combinator of a logical node.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// DelayType selects how a delay node computes its duration.
type DelayType string

const (
	DelayFixed  DelayType = "fixed"
	DelayRandom DelayType = "random"
)

// DelaySpec holds the duration configuration of a delay node.
type DelaySpec struct {
	Type     DelayType `json:"type"`
	Hours    float64   `json:"hours,omitempty"`
	MinHours float64   `json:"min_hours,omitempty"`
	MaxHours float64   `json:"max_hours,omitempty"`
}

// ConditionalClause is one (condition, branch) pair of a conditional node.
type ConditionalClause struct {
	Condition *RuleNode
	Branch    *RuleNode
}

// RuleNode is the parsed, tagged representation of one node in a rule tree.
// Exactly one variant is populated, selected by Kind. Raw always keeps the
// original JSON object so suspended continuations can be persisted without a
// custom re-serialization of the typed form.
type RuleNode struct {
	ID   string
	Kind NodeKind
	Raw  map[string]any

	// trigger
	TriggerEvent string
	TriggerBody  *RuleNode

	// action
	ActionType    string
	ActionName    string
	ActionDetails map[string]any

	// delay
	Delay *DelaySpec

	// conditional
	Clauses []ConditionalClause
	Else    *RuleNode

	// logical
	Op       LogicalOp
	Operands []*RuleNode

	// parallel
	ParallelTrigger *RuleNode
	Branches        []*RuleNode

	// comparison leaf
	Comparison map[string]any
}

// ParseRuleNode classifies a raw rule object into its typed variant.
//
// Classification is checked in a fixed priority order: trigger, action,
// delay, conditional, logical, parallel, and finally the comparison-leaf
// fallback. The order matters because a node may carry several recognizable
// keys at once; the more specific tags win. Unknown keys are ignored so that
// rule trees produced by newer authoring tools still parse.
//
// ParseRuleNode never fails for a well-formed JSON object: anything that does
// not match a tagged shape is treated as a comparison leaf.
func ParseRuleNode(raw map[string]any) *RuleNode {
	if raw == nil {
		return nil
	}

	node := &RuleNode{ID: nodeID(raw), Raw: raw}

	if event, ok := raw["trigger"].(string); ok {
		node.Kind = KindTrigger
		node.TriggerEvent = event
		node.TriggerBody = parseTriggerBody(raw)

		return node
	}

	if actionType, ok := raw["action"].(string); ok {
		node.Kind = KindAction
		node.ActionType = actionType
		node.ActionName, _ = raw["name"].(string)

		if details, ok := raw["details"].(map[string]any); ok {
			node.ActionDetails = details
		} else {
			node.ActionDetails = map[string]any{}
		}

		return node
	}

	if delayRaw, ok := raw["delay"].(map[string]any); ok {
		node.Kind = KindDelay
		node.Delay = parseDelaySpec(delayRaw)

		return node
	}

	if clauses, ok := raw["if"].([]any); ok {
		node.Kind = KindConditional
		node.Clauses, node.Else = parseConditionalClauses(clauses)

		return node
	}

	for _, op := range []LogicalOp{OpAnd, OpOr} {
		if operands, ok := raw[string(op)].([]any); ok {
			node.Kind = KindLogical
			node.Op = op
			node.Operands = parseNodeList(operands)

			return node
		}
	}

	if parallelRaw, ok := raw["parallel"].(map[string]any); ok {
		node.Kind = KindParallel

		if triggerRaw, ok := parallelRaw["trigger"].(map[string]any); ok {
			node.ParallelTrigger = ParseRuleNode(triggerRaw)
		}

		if branches, ok := parallelRaw["branches"].([]any); ok {
			node.Branches = parseNodeList(branches)
		}

		return node
	}

	node.Kind = KindComparison
	node.Comparison = raw

	return node
}

// ParseRuleNodes parses a list of raw rule objects, dropping entries that are
// not JSON objects.
func ParseRuleNodes(raws []map[string]any) []*RuleNode {
	nodes := make([]*RuleNode, 0, len(raws))
	for _, raw := range raws {
		if node := ParseRuleNode(raw); node != nil {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// parseTriggerBody re-parses the trigger object without its tag, so that a
// root rule like {"trigger": "subscription", "if": [...]} evaluates its body
// after the trigger predicate passes.
func parseTriggerBody(raw map[string]any) *RuleNode {
	body := make(map[string]any, len(raw))

	for k, v := range raw {
		if k == "trigger" || k == "id" {
			continue
		}

		body[k] = v
	}

	if len(body) == 0 {
		return nil
	}

	return ParseRuleNode(body)
}

func parseDelaySpec(raw map[string]any) *DelaySpec {
	spec := &DelaySpec{Type: DelayFixed}

	if t, ok := raw["type"].(string); ok && t != "" {
		spec.Type = DelayType(t)
	}

	spec.Hours = floatValue(raw["hours"])
	spec.MinHours = floatValue(raw["min_hours"])
	spec.MaxHours = floatValue(raw["max_hours"])

	return spec
}

// parseConditionalClauses handles both the three-element [cond, then, else]
// form and the alternating if/elseif/.../else array form. A trailing unpaired
// element is the else branch.
func parseConditionalClauses(items []any) ([]ConditionalClause, *RuleNode) {
	clauses := make([]ConditionalClause, 0, len(items)/2)

	var elseBranch *RuleNode

	for i := 0; i < len(items); i += 2 {
		condRaw, ok := items[i].(map[string]any)
		if !ok {
			continue
		}

		if i+1 >= len(items) {
			elseBranch = ParseRuleNode(condRaw)

			break
		}

		branchRaw, ok := items[i+1].(map[string]any)
		if !ok {
			continue
		}

		clauses = append(clauses, ConditionalClause{
			Condition: ParseRuleNode(condRaw),
			Branch:    ParseRuleNode(branchRaw),
		})
	}

	return clauses, elseBranch
}

func parseNodeList(items []any) []*RuleNode {
	nodes := make([]*RuleNode, 0, len(items))

	for _, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			// Null operands are kept as nil entries; the interpreter skips
			// them with a warning instead of failing the combinator.
			nodes = append(nodes, nil)

			continue
		}

		nodes = append(nodes, ParseRuleNode(raw))
	}

	return nodes
}

func nodeID(raw map[string]any) string {
	if id, ok := raw["id"].(string); ok && id != "" {
		return id
	}

	return fmt.Sprintf("node-%s", uuid.New().String()[:8])
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}

	return 0
}
