// Package queue provides the Redis queue ingestor: upstream services push
// entity records onto a list, and the ingestor lands them in persistence
// where the trigger sweeper picks them up.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
)

// Ingestor consumes entity records from a Redis list with blocking pops.
type Ingestor struct {
	queue      string
	connection map[string]string
	entities   persistence.EntityRepository
	logger     *slog.Logger

	client redis.UniversalClient
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewIngestor(config map[string]any, entities persistence.EntityRepository, logger *slog.Logger) (*Ingestor, error) {
	queue, _ := config["queue"].(string)
	if queue == "" {
		return nil, errors.New("queue ingestor queue name is required")
	}

	connectionConfig, _ := config["connection"].(map[string]any)

	connection := make(map[string]string)
	for k, v := range connectionConfig {
		if str, ok := v.(string); ok {
			connection[k] = str
		}
	}

	return &Ingestor{
		queue:      queue,
		connection: connection,
		entities:   entities,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_ingestor",
			"queue", queue,
		),
	}, nil
}

func (i *Ingestor) Start(ctx context.Context) error {
	i.logger.InfoContext(ctx, "Starting queue ingestor")

	err := i.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	i.wg.Add(1)

	go i.consume(ctx)

	return nil
}

func (i *Ingestor) initializeClient(ctx context.Context) error {
	addr := i.connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if dbStr := i.connection["db"]; dbStr != "" {
		_, err := fmt.Sscanf(dbStr, "%d", &db)
		if err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	i.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: i.connection["password"],
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := i.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	i.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (i *Ingestor) consume(ctx context.Context) {
	defer i.wg.Done()

	for {
		select {
		case <-i.stopCh:
			i.logger.InfoContext(ctx, "Queue ingestor stopped")

			return
		case <-ctx.Done():
			i.logger.InfoContext(ctx, "Context cancelled, stopping queue ingestor")

			return
		default:
			err := i.processMessage(ctx)
			if err != nil {
				i.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (i *Ingestor) processMessage(ctx context.Context) error {
	result, err := i.client.BLPop(ctx, 1*time.Second, i.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	entity, err := parseEntity([]byte(result[1]))
	if err != nil {
		i.logger.ErrorContext(ctx, "Dropping unparseable queue message", "error", err)

		return nil
	}

	err = i.entities.Save(ctx, entity)
	if err != nil {
		return fmt.Errorf("failed to save entity %s: %w", entity.ID, err)
	}

	i.logger.InfoContext(ctx, "Entity ingested",
		"entity_id", entity.ID, "entity_type", entity.Type)

	return nil
}

// parseEntity accepts either a full entity document or a bare data payload
// with type/user_id fields.
func parseEntity(payload []byte) (*models.Entity, error) {
	var raw map[string]any

	err := json.Unmarshal(payload, &raw)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	entity := &models.Entity{CreatedAt: time.Now().UTC()}

	if id, ok := raw["id"].(string); ok && id != "" {
		entity.ID = id
	} else {
		entity.ID = "entity-" + uuid.New().String()
	}

	entityType, _ := raw["type"].(string)
	if entityType == "" {
		return nil, errors.New("queue message has no entity type")
	}

	entity.Type = entityType
	entity.UserID, _ = raw["user_id"].(string)
	entity.State, _ = raw["state"].(string)

	if data, ok := raw["data"].(map[string]any); ok {
		entity.Data = data
	} else {
		entity.Data = raw
	}

	if createdAt, ok := raw["created_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			entity.CreatedAt = parsed
		}
	}

	return entity, nil
}

func (i *Ingestor) Stop(ctx context.Context) error {
	i.logger.InfoContext(ctx, "Stopping queue ingestor")

	close(i.stopCh)
	i.wg.Wait()

	if i.client != nil {
		err := i.client.Close()
		if err != nil {
			i.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
