// Package main provides journey-run, a one-shot runner that executes a
// single workflow against provided trigger data and prints the resulting
// execution record. Useful for authoring and debugging rule trees.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/relaykit/journey/pkg/cmd"
	"github.com/relaykit/journey/pkg/engine"
	"github.com/relaykit/journey/pkg/interpreter"
	"github.com/relaykit/journey/pkg/log"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/protocol"
	"github.com/relaykit/journey/pkg/triggers/signup"
	"github.com/relaykit/journey/pkg/triggers/subscription"
)

func main() {
	logger := log.WithModule("run")

	command := &cli.Command{
		Name:                  "journey-run",
		Usage:                 "Execute one workflow against trigger data and print the execution record",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "workflow-id",
				Aliases:  []string{"w"},
				Usage:    "Workflow to execute",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Trigger data as inline JSON",
			},
			&cli.StringFlag{
				Name:    "data-file",
				Aliases: []string{"f"},
				Usage:   "Trigger data as a JSON file",
			},
			&cli.BoolFlag{
				Name:  "validate-only",
				Usage: "Validate the workflow's rule tree and exit",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			return run(ctx, logger, command)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, slogger *slog.Logger, command *cli.Command) error {

	p := cmd.NewPersistence(ctx, slogger, command.String("database-url"))
	defer func() { _ = p.Close(ctx) }()

	workflow, err := p.Workflows().GetByID(ctx, command.String("workflow-id"))
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	reg := cmd.NewRegistry(slogger, nil)
	interp := interpreter.New(reg, slogger)
	cmd.RegisterSharedFlow(reg, p.Workflows(), interp, slogger)

	if command.Bool("validate-only") {
		result := engine.ValidateRuleTree(workflow.RuleNode(), reg)

		return printJSON(result)
	}

	triggerData, err := loadTriggerData(command)
	if err != nil {
		return err
	}

	execCtx, err := buildContext(ctx, workflow, triggerData)
	if err != nil {
		return err
	}

	coordinator := engine.NewCoordinator(p, interp, nil, nil, slogger, "journey-run")

	record, err := coordinator.Start(ctx, workflow, execCtx)
	if record != nil {
		printErr := printJSON(record)
		if err == nil {
			err = printErr
		}
	}

	return err
}

// buildContext routes through the matching trigger implementation so the
// one-shot runner exercises the same validation path as the sweeper.
func buildContext(ctx context.Context, workflow *models.Workflow, triggerData map[string]any) (*models.ExecutionContext, error) {
	var trigger protocol.Trigger

	slogger := log.WithModule("run")

	switch workflow.TriggerType() {
	case "subscription":
		trigger = subscription.NewTrigger(workflow.ID, slogger)
	case "signup", "user_created":
		trigger = signup.NewTrigger(workflow.ID, slogger)
	default:
		userID, _ := triggerData["user_id"].(string)

		return models.NewExecutionContext(workflow.ID, workflow.TriggerType(), "", userID, triggerData), nil
	}

	validation := trigger.Validate(triggerData)
	if !validation.IsValid {
		return nil, fmt.Errorf("trigger data invalid: %v", validation.Errors)
	}

	execCtx, err := trigger.Process(ctx, triggerData)
	if err != nil {
		return nil, err
	}

	if !trigger.ShouldExecute(execCtx) {
		return nil, fmt.Errorf("trigger declined execution for this data")
	}

	return execCtx, nil
}

func loadTriggerData(command *cli.Command) (map[string]any, error) {
	raw := []byte(command.String("data"))

	if file := command.String("data-file"); file != "" {
		var err error

		raw, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file: %w", err)
		}
	}

	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var data map[string]any

	err := json.Unmarshal(raw, &data)
	if err != nil {
		return nil, fmt.Errorf("invalid trigger data JSON: %w", err)
	}

	return data, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
