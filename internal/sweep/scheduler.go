package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the sweep once a day at midnight.
const DefaultSchedule = "@daily"

var errMissingRunner = errors.New("sweep: runner is required")

// Runner is satisfied by Sweeper.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// Scheduler triggers a Runner on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger
}

func NewScheduler(schedule string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errMissingRunner
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	scheduler := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		logger: logger,
	}
	if _, err := scheduler.cron.AddFunc(schedule, scheduler.runOnce); err != nil {
		return nil, fmt.Errorf("sweep: invalid schedule %q: %w", schedule, err)
	}
	return scheduler, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further runs and waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runOnce() {
	nudged, err := s.runner.Run(context.Background())
	if err != nil {
		s.logger.Error("scheduled inactivity sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled inactivity sweep completed", zap.Int("nudged", nudged))
}
