package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleNode_KindPriority(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want NodeKind
	}{
		{
			name: "trigger_wins_over_logical",
			raw: map[string]any{
				"trigger": "subscription",
				"and":     []any{map[string]any{"action": "log"}},
			},
			want: KindTrigger,
		},
		{
			name: "action",
			raw:  map[string]any{"action": "send_email", "details": map[string]any{"template": "welcome"}},
			want: KindAction,
		},
		{
			name: "delay",
			raw:  map[string]any{"delay": map[string]any{"type": "fixed", "hours": 24.0}},
			want: KindDelay,
		},
		{
			name: "conditional",
			raw:  map[string]any{"if": []any{map[string]any{"x": 1.0}, map[string]any{"action": "log"}}},
			want: KindConditional,
		},
		{
			name: "logical_or",
			raw:  map[string]any{"or": []any{map[string]any{"x": 1.0}}},
			want: KindLogical,
		},
		{
			name: "parallel",
			raw:  map[string]any{"parallel": map[string]any{"branches": []any{map[string]any{"action": "log"}}}},
			want: KindParallel,
		},
		{
			name: "comparison_fallback",
			raw:  map[string]any{"subscription_package": "premium"},
			want: KindComparison,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := ParseRuleNode(tt.raw)
			require.NotNil(t, node)
			assert.Equal(t, tt.want, node.Kind)
			assert.Equal(t, tt.raw, node.Raw)
		})
	}
}

func TestParseRuleNode_TriggerBody(t *testing.T) {
	node := ParseRuleNode(map[string]any{
		"trigger": "subscription",
		"and": []any{
			map[string]any{"action": "log"},
		},
	})

	require.NotNil(t, node)
	assert.Equal(t, "subscription", node.TriggerEvent)
	require.NotNil(t, node.TriggerBody)
	assert.Equal(t, KindLogical, node.TriggerBody.Kind)
	assert.Equal(t, OpAnd, node.TriggerBody.Op)
}

func TestParseRuleNode_TriggerWithoutBody(t *testing.T) {
	node := ParseRuleNode(map[string]any{"trigger": "signup"})

	require.NotNil(t, node)
	assert.Nil(t, node.TriggerBody)
}

func TestParseRuleNode_ConditionalTripleForm(t *testing.T) {
	node := ParseRuleNode(map[string]any{
		"if": []any{
			map[string]any{"subscription_package": "premium"},
			map[string]any{"action": "send_email"},
			map[string]any{"action": "log"},
		},
	})

	require.NotNil(t, node)
	require.Len(t, node.Clauses, 1)
	assert.Equal(t, KindComparison, node.Clauses[0].Condition.Kind)
	assert.Equal(t, KindAction, node.Clauses[0].Branch.Kind)
	require.NotNil(t, node.Else)
	assert.Equal(t, "log", node.Else.ActionType)
}

func TestParseRuleNode_ConditionalAlternatingForm(t *testing.T) {
	node := ParseRuleNode(map[string]any{
		"if": []any{
			map[string]any{"plan": "a"},
			map[string]any{"action": "log", "name": "first"},
			map[string]any{"plan": "b"},
			map[string]any{"action": "log", "name": "second"},
		},
	})

	require.NotNil(t, node)
	assert.Len(t, node.Clauses, 2)
	assert.Nil(t, node.Else)
}

func TestParseRuleNode_NullOperandsKeptAsNil(t *testing.T) {
	node := ParseRuleNode(map[string]any{
		"and": []any{
			map[string]any{"action": "log"},
			nil,
			map[string]any{"action": "end"},
		},
	})

	require.NotNil(t, node)
	require.Len(t, node.Operands, 3)
	assert.NotNil(t, node.Operands[0])
	assert.Nil(t, node.Operands[1])
	assert.NotNil(t, node.Operands[2])
}

func TestParseRuleNode_IDs(t *testing.T) {
	explicit := ParseRuleNode(map[string]any{"id": "my-node", "action": "log"})
	assert.Equal(t, "my-node", explicit.ID)

	generated := ParseRuleNode(map[string]any{"action": "log"})
	assert.NotEmpty(t, generated.ID)
	assert.Contains(t, generated.ID, "node-")
}

func TestParseDelaySpec(t *testing.T) {
	node := ParseRuleNode(map[string]any{
		"delay": map[string]any{"type": "random", "min_hours": 1.0, "max_hours": 3.0},
	})

	require.NotNil(t, node.Delay)
	assert.Equal(t, DelayRandom, node.Delay.Type)
	assert.InDelta(t, 1.0, node.Delay.MinHours, 0.001)
	assert.InDelta(t, 3.0, node.Delay.MaxHours, 0.001)
}

func TestParseDelaySpec_DefaultsToFixed(t *testing.T) {
	node := ParseRuleNode(map[string]any{
		"delay": map[string]any{"hours": 48.0},
	})

	require.NotNil(t, node.Delay)
	assert.Equal(t, DelayFixed, node.Delay.Type)
	assert.InDelta(t, 48.0, node.Delay.Hours, 0.001)
}

func TestWorkflow_TriggerType(t *testing.T) {
	workflow := &Workflow{
		Rule: map[string]any{"trigger": "subscription"},
	}
	assert.Equal(t, "subscription", workflow.TriggerType())

	noTrigger := &Workflow{
		Rule: map[string]any{"and": []any{}},
	}
	assert.Empty(t, noTrigger.TriggerType())
}
