// Package testutil provides test data builders shared across packages.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/relaykit/journey/pkg/models"
)

// CreateTestWorkflow creates a published workflow with a trivial rule tree
// that can be overridden per test.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:     "wf-" + uuid.New().String()[:8],
		Name:   "Test Workflow",
		Status: models.WorkflowStatusPublished,
		Rule: map[string]any{
			"trigger": "subscription",
			"and": []any{
				map[string]any{"action": "log", "details": map[string]any{"message": "hello"}},
			},
		},
		CreatedAt:   now,
		UpdatedAt:   now,
		PublishedAt: &now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithRule replaces the workflow's rule tree.
func WithRule(rule map[string]any) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Rule = rule
	}
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// CreateTestContext creates an execution context with subscription-shaped
// trigger data.
func CreateTestContext(overrides ...func(*models.ExecutionContext)) *models.ExecutionContext {
	execCtx := models.NewExecutionContext(
		"wf-test",
		"subscription",
		"sub-1",
		"user-1",
		map[string]any{
			"subscription_id":      "sub-1",
			"subscription_package": "premium",
			"status":               "active",
			"email":                "user@example.com",
		},
	)

	for _, override := range overrides {
		override(execCtx)
	}

	return execCtx
}

// WithTriggerData replaces the context trigger data.
func WithTriggerData(data map[string]any) func(*models.ExecutionContext) {
	return func(c *models.ExecutionContext) {
		c.TriggerData = data
	}
}

// CreateTestEntity creates an unprocessed subscription entity.
func CreateTestEntity(overrides ...func(*models.Entity)) *models.Entity {
	entity := &models.Entity{
		ID:     "entity-" + uuid.New().String()[:8],
		Type:   "subscription",
		UserID: "user-1",
		State:  "active",
		Data: map[string]any{
			"subscription_id":      "sub-1",
			"subscription_package": "basic",
			"email":                "user@example.com",
		},
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}

	for _, override := range overrides {
		override(entity)
	}

	return entity
}
