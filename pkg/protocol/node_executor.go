// Package protocol defines the contracts between the execution engine and
// its pluggable collaborators: node executors and triggers.
package protocol

import (
	"context"

	"github.com/relaykit/journey/pkg/models"
)

// NodeExecutor handles one action/step type, registered under a type tag.
// Any component satisfying the four-method contract may be registered; this
// is capability-keyed dispatch, not inheritance.
//
// Execute reports transient failures through ExecutionResult rather than an
// error: a non-nil error means the engine itself could not dispatch the step
// and the surrounding execution is failed. Actions may be retried by the
// engine, so implementations must be idempotent.
type NodeExecutor interface {
	Execute(ctx context.Context, step *models.RuleNode, execCtx *models.ExecutionContext) (*models.ExecutionResult, error)
	Validate(step *models.RuleNode) *models.ValidationResult
	NodeType() string
	Dependencies() []string
}
