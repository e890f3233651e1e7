// Package log provides the logging step executor.
package log

import (
	"context"
	"log/slog"

	"github.com/relaykit/journey/pkg/executors/schema"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/template"
)

// Executor logs a templated message at a configured level.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("node_type", "log")}
}

func (e *Executor) NodeType() string {
	return "log"
}

func (e *Executor) Dependencies() []string {
	return nil
}

func (e *Executor) Execute(ctx context.Context, step *models.RuleNode, execCtx *models.ExecutionContext) (*models.ExecutionResult, error) {
	messageTemplate, _ := step.ActionDetails["message"].(string)

	message, err := template.RenderString(messageTemplate, execCtx)
	if err != nil {
		return &models.ExecutionResult{
			Success: false,
			Error:   "failed to render log message: " + err.Error(),
		}, nil
	}

	level, _ := step.ActionDetails["level"].(string)

	logger := e.logger.With("node_id", step.ID, "execution_id", execCtx.ID)

	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}

	return &models.ExecutionResult{
		Success: true,
		Result: map[string]any{
			"message": message,
			"level":   level,
			"logged":  true,
		},
	}, nil
}

func (e *Executor) Validate(step *models.RuleNode) *models.ValidationResult {
	return schema.Validate(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Supports templating",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}, step.ActionDetails)
}
