// Package end provides the terminal marker step executor.
package end

import (
	"context"
	"log/slog"

	"github.com/relaykit/journey/pkg/models"
)

// Executor marks the logical end of a workflow path. It carries no behavior
// beyond tracing; authors use it to make terminal branches explicit.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("node_type", "end")}
}

func (e *Executor) NodeType() string {
	return "end"
}

func (e *Executor) Dependencies() []string {
	return nil
}

func (e *Executor) Execute(ctx context.Context, step *models.RuleNode, execCtx *models.ExecutionContext) (*models.ExecutionResult, error) {
	e.logger.Debug("Workflow path ended",
		"node_id", step.ID, "execution_id", execCtx.ID)

	return &models.ExecutionResult{
		Success: true,
		Result:  map[string]any{"ended": true},
	}, nil
}

func (e *Executor) Validate(step *models.RuleNode) *models.ValidationResult {
	return models.Valid()
}
