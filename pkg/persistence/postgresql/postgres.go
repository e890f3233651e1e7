// Package postgresql provides PostgreSQL persistence for the execution
// engine's durable state. It is the backend for horizontally scaled
// deployments: delay claims and watermark advances are guarded by the
// database, not by process-local locks.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/relaykit/journey/pkg/persistence"
	"github.com/relaykit/journey/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflows  *WorkflowRepository
	delays     *DelayRepository
	watermarks *WatermarkRepository
	executions *ExecutionRepository
	entities   *EntityRepository
}

// NewPersistence connects, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		workflows:  &WorkflowRepository{db: database},
		delays:     &DelayRepository{db: database},
		watermarks: &WatermarkRepository{db: database},
		executions: &ExecutionRepository{db: database},
		entities:   &EntityRepository{db: database},
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) Delays() persistence.DelayRepository         { return p.delays }
func (p *Persistence) Watermarks() persistence.WatermarkRepository { return p.watermarks }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) Entities() persistence.EntityRepository      { return p.entities }

func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
