package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/relaykit/journey/pkg/log"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("engine")

	command := &cli.Command{
		Name:                  "journey-engine",
		Usage:                 "Run the workflow execution engine: trigger sweeps, delay resumption and the operational API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the operational API on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "worker-id",
				Usage:   "Stable identifier for this engine instance",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.IntFlag{
				Name:    "pool-size",
				Usage:   "Concurrent execution limit",
				Value:   0,
				Sources: cli.EnvVars("POOL_SIZE"),
			},
			&cli.StringFlag{
				Name:    "delay-schedule",
				Usage:   "Cron cadence for the delay sweep",
				Sources: cli.EnvVars("DELAY_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "trigger-schedule",
				Usage:   "Cron cadence for the trigger sweep",
				Sources: cli.EnvVars("TRIGGER_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Redis list to ingest entities from (disabled when empty)",
				Sources: cli.EnvVars("QUEUE_NAME"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the queue ingestor",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing journey engine")

			engine := NewEngineApp(logger, command)

			return engine.Run(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
