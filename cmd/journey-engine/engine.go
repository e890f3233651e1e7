// Package main provides the journey engine server: the scheduler, the queue
// ingestor and the operational API in one process.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaykit/journey/pkg/cmd"
	"github.com/relaykit/journey/pkg/engine"
	"github.com/relaykit/journey/pkg/interpreter"
	"github.com/relaykit/journey/pkg/otelhelper"
	"github.com/relaykit/journey/pkg/persistence"
	"github.com/relaykit/journey/pkg/registry"
	"github.com/relaykit/journey/pkg/scheduler"
	"github.com/relaykit/journey/pkg/triggers/queue"
	"github.com/relaykit/journey/pkg/web"
)

type EngineApp struct {
	logger  *slog.Logger
	command *cli.Command
}

func NewEngineApp(logger *slog.Logger, command *cli.Command) *EngineApp {
	return &EngineApp{logger: logger, command: command}
}

func (a *EngineApp) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	workerID := a.command.String("worker-id")
	if workerID == "" {
		workerID = "engine-" + uuid.New().String()[:8]
	}

	persistence := cmd.NewPersistence(ctx, a.logger, a.command.String("database-url"))
	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(a.command.String("event-bus"), a.logger)
	defer func() {
		err := eventBus.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var tracer trace.Tracer

	if a.command.Bool("tracing") {
		var err error

		tracer, err = otelhelper.NewTracer(ctx, "journey-engine")
		if err != nil {
			return err
		}
	}

	reg := cmd.NewRegistry(a.logger, nil)
	interp := interpreter.New(reg, a.logger)
	cmd.RegisterSharedFlow(reg, persistence.Workflows(), interp, a.logger)

	coordinator := engine.NewCoordinator(persistence, interp, eventBus, tracer, a.logger, workerID)

	pool := scheduler.NewPool(int(a.command.Int("pool-size")), a.logger)
	delaySweeper := scheduler.NewDelaySweeper(persistence, coordinator, pool, a.logger, workerID)
	triggerSweeper := scheduler.NewTriggerSweeper(persistence, coordinator, eventBus, a.logger, workerID)

	sched := scheduler.NewScheduler(pool, delaySweeper, triggerSweeper, a.logger, scheduler.Config{
		DelaySchedule:   a.command.String("delay-schedule"),
		TriggerSchedule: a.command.String("trigger-schedule"),
	})

	err := sched.Start(ctx)
	if err != nil {
		return err
	}
	defer sched.Stop()

	if queueName := a.command.String("queue-name"); queueName != "" {
		ingestor, err := queue.NewIngestor(map[string]any{
			"queue": queueName,
			"connection": map[string]any{
				"addr": a.command.String("redis-addr"),
			},
		}, persistence.Entities(), a.logger)
		if err != nil {
			return err
		}

		err = ingestor.Start(ctx)
		if err != nil {
			return err
		}

		defer func() {
			err := ingestor.Stop(ctx)
			if err != nil {
				a.logger.ErrorContext(ctx, "Failed to stop queue ingestor", "error", err)
			}
		}()
	}

	app := a.buildAPI(persistence, coordinator, reg)

	go func() {
		<-ctx.Done()

		err := app.Shutdown()
		if err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	a.logger.InfoContext(ctx, "Engine started", "worker_id", workerID)

	return app.Listen(":" + strconv.Itoa(int(a.command.Int("port"))))
}

func (a *EngineApp) buildAPI(p persistence.Persistence, coordinator *engine.Coordinator, reg *registry.Registry) *fiber.App {
	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(p, coordinator, reg, validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/delays", handlers.GetExecutionDelays)
	e.Post("/:id/cancel", handlers.CancelExecution)

	return app
}
