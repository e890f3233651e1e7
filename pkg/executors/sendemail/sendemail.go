// Package sendemail provides the email step executor.
package sendemail

import (
	"context"
	"log/slog"

	"github.com/relaykit/journey/pkg/executors/schema"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/template"
)

// Mailer is the delivery backend. Implementations wrap whatever provider is
// configured; SendEmail returning an error marks the step as failed without
// failing the surrounding execution.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]any) error
}

// Executor sends a templated email to the resolved recipient.
type Executor struct {
	mailer Mailer
	logger *slog.Logger
}

func NewExecutor(mailer Mailer, logger *slog.Logger) *Executor {
	return &Executor{
		mailer: mailer,
		logger: logger.With("node_type", "send_email"),
	}
}

func (e *Executor) NodeType() string {
	return "send_email"
}

func (e *Executor) Dependencies() []string {
	return nil
}

func (e *Executor) Execute(ctx context.Context, step *models.RuleNode, execCtx *models.ExecutionContext) (*models.ExecutionResult, error) {
	templateName, _ := step.ActionDetails["template"].(string)

	to, err := e.recipient(step, execCtx)
	if err != nil {
		return &models.ExecutionResult{Success: false, Error: err.Error()}, nil
	}

	if to == "" {
		return &models.ExecutionResult{
			Success: false,
			Error:   "no recipient could be resolved from step details or context",
		}, nil
	}

	subject := templateName

	if raw, ok := step.ActionDetails["subject"].(string); ok && raw != "" {
		subject, err = template.RenderString(raw, execCtx)
		if err != nil {
			return &models.ExecutionResult{
				Success: false,
				Error:   "failed to render subject: " + err.Error(),
			}, nil
		}
	}

	data := map[string]any{
		"trigger_data": execCtx.TriggerData,
		"user_id":      execCtx.UserID,
	}

	if execCtx.Entity != nil {
		data["entity"] = execCtx.Entity.Data
	}

	err = e.mailer.SendEmail(ctx, to, subject, templateName, data)
	if err != nil {
		e.logger.Error("Email delivery failed",
			"template", templateName, "to", to, "error", err)

		return &models.ExecutionResult{
			Success: false,
			Error:   "email delivery failed: " + err.Error(),
		}, nil
	}

	e.logger.Info("Email sent",
		"template", templateName, "to", to, "execution_id", execCtx.ID)

	return &models.ExecutionResult{
		Success: true,
		Result: map[string]any{
			"template": templateName,
			"to":       to,
			"sent":     true,
		},
	}, nil
}

// recipient resolves the destination address: an explicit templated "to"
// field wins, then the context's trigger data.
func (e *Executor) recipient(step *models.RuleNode, execCtx *models.ExecutionContext) (string, error) {
	if raw, ok := step.ActionDetails["to"].(string); ok && raw != "" {
		return template.RenderString(raw, execCtx)
	}

	if email, ok := execCtx.TriggerData["email"].(string); ok {
		return email, nil
	}

	if execCtx.Entity != nil {
		if email, ok := execCtx.Entity.Data["email"].(string); ok {
			return email, nil
		}
	}

	return "", nil
}

func (e *Executor) Validate(step *models.RuleNode) *models.ValidationResult {
	return schema.Validate(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template": map[string]any{
				"type":        "string",
				"description": "Name of the email template to send",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address. Supports templating; defaults to the context email",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject line. Supports templating",
			},
		},
		"required": []string{"template"},
	}, step.ActionDetails)
}
