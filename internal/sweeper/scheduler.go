package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps robfig/cron and fires the sweeper on a fixed interval.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	spec    string
	logger  *zap.Logger
}

// NewScheduler creates a scheduler for the given cron spec, e.g. "@hourly".
func NewScheduler(sweeper *Sweeper, spec string, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = "@hourly"
	}

	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the sweep job and starts the cron loop. One sweep also
// runs immediately so expired records do not linger until the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("sweep scheduler started", zap.String("spec", s.spec))

	go s.runOnce(ctx)

	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	// Run errors are already logged by the sweeper; a failed pass never
	// cancels future scheduled passes.
	_, _ = s.sweeper.Run(ctx)
}

// Shutdown stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Shutdown() error {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("sweep scheduler stopped")

	return nil
}
