package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/pixelweather/weather-push-backend/logger"
)

// Scheduler triggers polling runs on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	poller    *PollerService
	interval  time.Duration
	logger    *zap.SugaredLogger
}

// NewScheduler creates a scheduler that runs the poller every interval.
func NewScheduler(poller *PollerService, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		poller:    poller,
		interval:  interval,
		logger:    logger.GetLogger().Named("scheduler"),
	}
}

// Start schedules the periodic polling job and starts the underlying
// scheduler asynchronously.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		summary := s.poller.RunOnce(context.Background())
		if !summary.Success {
			s.logger.Errorw("Scheduled polling run failed",
				"runId", summary.RunID,
				"error", summary.Error)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Infow("Polling schedule started", "intervalMinutes", minutes)
	return nil
}

// Stop halts the schedule. In-flight runs finish on their own.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
