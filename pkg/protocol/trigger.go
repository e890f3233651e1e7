package protocol

import (
	"context"

	"github.com/relaykit/journey/pkg/models"
)

// TriggerValidation is the structured result of validating raw trigger data
// before it is turned into an execution context.
type TriggerValidation struct {
	IsValid bool
	Context *models.ExecutionContext
	Errors  []string
}

// Trigger converts raw entity data into standardized execution contexts.
// Implementations are external collaborators; the scheduler consumes them.
//
// Every produced context carries workflow/trigger identities, the entity
// snapshot, and trigger metadata (source, version, priority, retryable,
// timeout). The engine does not enforce the declared timeout itself; that is
// the action layer's responsibility.
type Trigger interface {
	// Type returns the trigger-type tag this implementation serves.
	Type() string

	// Validate checks raw data without side effects.
	Validate(rawData map[string]any) *TriggerValidation

	// Process builds the execution context for one entity.
	Process(ctx context.Context, rawData map[string]any) (*models.ExecutionContext, error)

	// WorkflowID extracts the owning workflow from a context.
	WorkflowID(execCtx *models.ExecutionContext) string

	// ShouldExecute decides whether the engine runs the workflow for this
	// context (e.g. the subscription is still active at trigger time).
	ShouldExecute(execCtx *models.ExecutionContext) bool
}
