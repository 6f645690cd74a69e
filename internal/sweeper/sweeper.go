// Package sweeper invalidates stored referral records once their expiration
// date has passed. It runs on its own timer, independent of the pipeline.
package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/refhound/refhound/internal/analytics"
	"github.com/refhound/refhound/internal/messaging"
	"github.com/refhound/refhound/internal/referral"
	"go.uber.org/zap"
)

// Sweeper flips is_valid off on expired records. Each pass is idempotent:
// already-invalid records are not selected again.
type Sweeper struct {
	repo           referral.Repository
	publishExpired messaging.Publish[analytics.RecordExpiredEvent]
	now            func() time.Time
	logger         *zap.Logger
}

// New creates a sweeper over the given repository.
func New(
	repo referral.Repository,
	publishExpired messaging.Publish[analytics.RecordExpiredEvent],
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		repo:           repo,
		publishExpired: publishExpired,
		now:            time.Now,
		logger:         logger,
	}
}

// WithClock overrides the sweeper's time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now

	return s
}

// Run performs one sweep pass, returning how many records were invalidated.
// Per-record failures are logged and the pass continues; the error return
// only covers the initial listing query.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	sweepID := uuid.NewString()
	now := s.now()

	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		s.logger.Error("failed to list expired records",
			zap.String("sweep_id", sweepID),
			zap.Error(err),
		)

		return 0, err
	}

	invalidated := 0

	for _, record := range expired {
		if err := s.repo.Invalidate(ctx, record.ID, now); err != nil {
			s.logger.Error("failed to invalidate record",
				zap.String("sweep_id", sweepID),
				zap.String("record_id", record.ID),
				zap.Error(err),
			)

			continue
		}

		invalidated++

		event := &analytics.RecordExpiredEvent{
			RecordID:       record.ID,
			Brand:          record.Brand,
			ExpirationDate: record.ExpirationDate,
			SweptAt:        now,
			SweepID:        sweepID,
		}
		if err := s.publishExpired(event); err != nil {
			s.logger.Error("failed to publish expiry event",
				zap.String("record_id", record.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("sweep complete",
		zap.String("sweep_id", sweepID),
		zap.Int("expired", len(expired)),
		zap.Int("invalidated", invalidated),
	)

	return invalidated, nil
}
