package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultDelaySchedule is how often due delay records are swept.
	DefaultDelaySchedule = "@every 1m"

	// DefaultTriggerSchedule is how often trigger entities are swept.
	DefaultTriggerSchedule = "@every 1m"
)

// Config holds the sweep cadences as cron expressions.
type Config struct {
	DelaySchedule   string
	TriggerSchedule string
}

func (c Config) withDefaults() Config {
	if c.DelaySchedule == "" {
		c.DelaySchedule = DefaultDelaySchedule
	}

	if c.TriggerSchedule == "" {
		c.TriggerSchedule = DefaultTriggerSchedule
	}

	return c
}

// Scheduler runs both sweepers on their cron cadences over a shared worker
// pool.
type Scheduler struct {
	cron     *cron.Cron
	pool     *Pool
	delays   *DelaySweeper
	triggers *TriggerSweeper
	logger   *slog.Logger
	config   Config
}

func NewScheduler(pool *Pool, delays *DelaySweeper, triggers *TriggerSweeper, logger *slog.Logger, config Config) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		pool:     pool,
		delays:   delays,
		triggers: triggers,
		logger:   logger.With("module", "scheduler"),
		config:   config.withDefaults(),
	}
}

// Start launches the pool and registers both sweeps. Sweeps overlapping
// their own next tick is acceptable; the delay claim and the watermark
// advance are both safe under concurrent sweeps.
func (s *Scheduler) Start(ctx context.Context) error {
	s.pool.Start(ctx)

	_, err := s.cron.AddFunc(s.config.DelaySchedule, func() {
		err := s.delays.Sweep(ctx)
		if err != nil {
			s.logger.Error("Delay sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.config.TriggerSchedule, func() {
		err := s.triggers.Sweep(ctx)
		if err != nil {
			s.logger.Error("Trigger sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		"delay_schedule", s.config.DelaySchedule,
		"trigger_schedule", s.config.TriggerSchedule)

	return nil
}

// Stop halts the cron loop, waits for a running sweep to return, then drains
// the pool.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.pool.Stop()
	s.logger.Info("Scheduler stopped")
}
