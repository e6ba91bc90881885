// Package jobs runs the background maintenance of the service: periodic
// template refresh, eviction of idle editing sessions and the cleanups
// registered with AddCleanup.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// TemplateRefresher reloads the chart templates.
type TemplateRefresher interface {
	Refresh(ctx context.Context) error
}

// SessionSweeper closes sessions idle for longer than the given duration.
type SessionSweeper interface {
	Sweep(idle time.Duration) int
}

type Config struct {
	RefreshInterval time.Duration
	SessionIdle     time.Duration
	// SweepInterval defaults to a quarter of SessionIdle, at least one minute.
	SweepInterval time.Duration
}

// cleanup is a periodic job that reports how many items it removed.
type cleanup struct {
	name  string
	every time.Duration
	fn    func() int
}

type Scheduler struct {
	cfg       Config
	templates TemplateRefresher
	sessions  SessionSweeper
	cleanups  []cleanup
	scheduler *gocron.Scheduler
	logger    zerolog.Logger
}

func NewScheduler(cfg Config, templates TemplateRefresher, sessions SessionSweeper, logger zerolog.Logger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.SessionIdle / 4
		if cfg.SweepInterval < time.Minute {
			cfg.SweepInterval = time.Minute
		}
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		cfg:       cfg,
		templates: templates,
		sessions:  sessions,
		scheduler: s,
		logger:    logger,
	}
}

// AddCleanup registers fn to run every interval once the scheduler starts.
func (s *Scheduler) AddCleanup(name string, every time.Duration, fn func() int) {
	s.cleanups = append(s.cleanups, cleanup{name: name, every: every, fn: fn})
}

// Start warms the template cache and schedules the jobs. A failed warm-up
// is logged only; exports degrade per sheet.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.templates != nil {
		s.refreshTemplates(ctx)
		if s.cfg.RefreshInterval > 0 {
			if _, err := s.scheduler.Every(s.cfg.RefreshInterval).Do(s.refreshTemplates, ctx); err != nil {
				return fmt.Errorf("schedule template refresh: %w", err)
			}
		}
	}
	if s.sessions != nil && s.cfg.SessionIdle > 0 {
		if _, err := s.scheduler.Every(s.cfg.SweepInterval).Do(s.sweepSessions); err != nil {
			return fmt.Errorf("schedule session sweep: %w", err)
		}
	}
	for _, c := range s.cleanups {
		if c.every <= 0 {
			continue
		}
		if _, err := s.scheduler.Every(c.every).Do(s.runCleanup, c); err != nil {
			return fmt.Errorf("schedule %s: %w", c.name, err)
		}
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) refreshTemplates(ctx context.Context) {
	start := time.Now()
	if err := s.templates.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("template refresh failed")
		return
	}
	s.logger.Info().Dur("took", time.Since(start)).Msg("templates refreshed")
}

func (s *Scheduler) sweepSessions() {
	if n := s.sessions.Sweep(s.cfg.SessionIdle); n > 0 {
		s.logger.Info().Int("closed", n).Msg("idle editing sessions closed")
	}
}

func (s *Scheduler) runCleanup(c cleanup) {
	if n := c.fn(); n > 0 {
		s.logger.Debug().Str("job", c.name).Int("removed", n).Msg("cleanup ran")
	}
}
