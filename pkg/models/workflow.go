package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"
	WorkflowStatusPublished WorkflowStatus = "published"
	WorkflowStatusArchived  WorkflowStatus = "archived"
)

// Workflow is a published workflow definition: an identity plus a rule tree.
// Definitions are authored externally and immutable after publish; the
// engine only reads them.
type Workflow struct {
	ID          string         `json:"id"           validate:"required"`
	Name        string         `json:"name"         validate:"required,min=3"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"       validate:"required"`
	Rule        map[string]any `json:"rule"         validate:"required"`
	SharedFlows map[string]map[string]any `json:"shared_flows,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// RuleNode parses the workflow's raw rule tree. The parse is shape-driven
// and never fails for a well-formed object.
func (w *Workflow) RuleNode() *RuleNode {
	return ParseRuleNode(w.Rule)
}

// TriggerType returns the trigger event the rule tree is rooted at, or ""
// when the root is not a trigger node.
func (w *Workflow) TriggerType() string {
	root := w.RuleNode()
	if root == nil {
		return ""
	}

	if root.Kind == KindTrigger {
		return root.TriggerEvent
	}

	return ""
}

// Executable reports whether the engine may run this workflow.
func (w *Workflow) Executable() bool {
	return w.Status == WorkflowStatusPublished
}
