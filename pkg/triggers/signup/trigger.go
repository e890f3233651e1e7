// Package signup provides the signup trigger for user-created events.
package signup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/protocol"
)

const triggerType = "signup"

// Trigger standardizes user-signup events into execution contexts.
type Trigger struct {
	workflowID string
	logger     *slog.Logger
}

func NewTrigger(workflowID string, logger *slog.Logger) *Trigger {
	return &Trigger{
		workflowID: workflowID,
		logger:     logger.With("module", "signup_trigger"),
	}
}

func (t *Trigger) Type() string {
	return triggerType
}

func (t *Trigger) Validate(rawData map[string]any) *protocol.TriggerValidation {
	validation := &protocol.TriggerValidation{IsValid: true}

	userID, _ := rawData["user_id"].(string)
	if userID == "" {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, "missing user_id")

		return validation
	}

	execCtx, err := t.Process(context.Background(), rawData)
	if err != nil {
		validation.IsValid = false
		validation.Errors = append(validation.Errors, err.Error())

		return validation
	}

	validation.Context = execCtx

	return validation
}

func (t *Trigger) Process(ctx context.Context, rawData map[string]any) (*models.ExecutionContext, error) {
	userID, _ := rawData["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("signup data has no user_id")
	}

	execCtx := models.NewExecutionContext(t.workflowID, triggerType, userID, userID, rawData)
	execCtx.TriggerMeta = &models.TriggerMetadata{
		Source:    "signup-service",
		Version:   "1",
		Retryable: true,
		TimeoutMs: 30_000,
	}

	return execCtx, nil
}

func (t *Trigger) WorkflowID(execCtx *models.ExecutionContext) string {
	return execCtx.WorkflowID
}

// ShouldExecute is unconditional for signups: the event is a fact, not a
// state that can lapse before execution.
func (t *Trigger) ShouldExecute(execCtx *models.ExecutionContext) bool {
	return true
}
