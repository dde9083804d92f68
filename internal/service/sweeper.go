package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ViewSweeper tears down views of chats that have been idle too long.
type ViewSweeper interface {
	Sweep(idle time.Duration) int
	Len() int
}

// SweeperService periodically drops idle chat views.
type SweeperService struct {
	views    ViewSweeper
	schedule string
	idleTTL  time.Duration
	logger   *zap.Logger
}

func NewSweeperService(views ViewSweeper, schedule string, idleTTL time.Duration, logger *zap.Logger) *SweeperService {
	return &SweeperService{
		views:    views,
		schedule: schedule,
		idleTTL:  idleTTL,
		logger:   logger,
	}
}

// Start runs the sweep schedule until ctx is done.
func (s *SweeperService) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(s.schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("add sweep job %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.Info("view sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("idle_ttl", s.idleTTL),
	)

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("view sweeper stopped")
	return nil
}

func (s *SweeperService) sweep() {
	removed := s.views.Sweep(s.idleTTL)
	if removed > 0 {
		s.logger.Info("idle chat views removed",
			zap.Int("removed", removed),
			zap.Int("remaining", s.views.Len()),
		)
	}
}
