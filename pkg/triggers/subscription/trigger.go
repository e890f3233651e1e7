// Package subscription provides the subscription trigger: it turns raw
// subscription records into execution contexts.
package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/protocol"
)

const triggerType = "subscription"

// Trigger validates and standardizes subscription trigger data.
type Trigger struct {
	workflowID string
	logger     *slog.Logger
}

func NewTrigger(workflowID string, logger *slog.Logger) *Trigger {
	return &Trigger{
		workflowID: workflowID,
		logger:     logger.With("module", "subscription_trigger"),
	}
}

func (t *Trigger) Type() string {
	return triggerType
}

// Validate checks the raw data without side effects. A subscription record
// needs an identity and an owner; anything else is optional.
func (t *Trigger) Validate(rawData map[string]any) *protocol.TriggerValidation {
	validation := &protocol.TriggerValidation{IsValid: true}

	id := stringField(rawData, "subscription_id", "id")
	if id == "" {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, "missing subscription identifier")
	}

	if stringField(rawData, "user_id") == "" {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, "missing user_id")
	}

	if validation.IsValid {
		execCtx, err := t.Process(context.Background(), rawData)
		if err != nil {
			validation.IsValid = false
			validation.Errors = append(validation.Errors, err.Error())
		} else {
			validation.Context = execCtx
		}
	}

	return validation
}

// Process builds the execution context for one subscription record.
func (t *Trigger) Process(ctx context.Context, rawData map[string]any) (*models.ExecutionContext, error) {
	id := stringField(rawData, "subscription_id", "id")
	if id == "" {
		return nil, fmt.Errorf("subscription data has no identifier")
	}

	userID := stringField(rawData, "user_id")

	execCtx := models.NewExecutionContext(t.workflowID, triggerType, id, userID, rawData)
	execCtx.Entity = &models.EntityData{
		ID:   id,
		Type: triggerType,
		Data: rawData,
	}
	execCtx.TriggerMeta = &models.TriggerMetadata{
		Source:    "subscription-service",
		Version:   "1",
		Retryable: true,
		TimeoutMs: 30_000,
	}

	return execCtx, nil
}

func (t *Trigger) WorkflowID(execCtx *models.ExecutionContext) string {
	return execCtx.WorkflowID
}

// ShouldExecute gates on the subscription still being live at trigger time.
func (t *Trigger) ShouldExecute(execCtx *models.ExecutionContext) bool {
	status := stringField(execCtx.TriggerData, "status")
	if status == "cancelled" || status == "expired" {
		t.logger.Info("Skipping execution for inactive subscription",
			"trigger_id", execCtx.TriggerID, "status", status)

		return false
	}

	return true
}

func stringField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}

	return ""
}
