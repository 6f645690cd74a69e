package pipeline

import (
	"context"
	"time"

	"github.com/refhound/refhound/internal/extract"
	"github.com/refhound/refhound/internal/feed"
	"github.com/refhound/refhound/internal/referral"
	"go.uber.org/zap"
)

// Saver persists an extracted candidate, reporting whether a new record was
// inserted. Ineligible candidates and duplicates return false without error.
type Saver interface {
	Save(ctx context.Context, cand *referral.Candidate) (bool, error)
}

// Config holds the batching parameters.
type Config struct {
	// BatchSize is the number of posts per chunk.
	BatchSize int
	// BatchPause is the pause between chunks; none after the last chunk.
	BatchPause time.Duration
	// Sleep is the pause implementation; nil uses a real timer.
	Sleep SleepFunc
}

// Stats counts the outcomes of one run.
type Stats struct {
	Processed int
	Extracted int
	Saved     int
	Skipped   int
	Failed    int
}

// Runner drives posts through extraction and persistence. Posts are handled
// strictly sequentially: the rate budget of the extraction service is the
// bottleneck, so concurrency buys nothing here.
type Runner struct {
	extractor extract.Extractor
	saver     Saver
	throttle  Throttle
	cfg       Config
	sleep     SleepFunc
	logger    *zap.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(extractor extract.Extractor, saver Saver, throttle Throttle, cfg Config, logger *zap.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}

	if cfg.BatchPause <= 0 {
		cfg.BatchPause = 5 * time.Second
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	return &Runner{
		extractor: extractor,
		saver:     saver,
		throttle:  throttle,
		cfg:       cfg,
		sleep:     sleep,
		logger:    logger,
	}
}

// Run processes every post exactly once, waiting the throttle interval
// between consecutive extraction calls (but not after the final call of a
// batch) and the batch pause between batches (but not after the last one).
// Per-item failures are logged and absorbed; Run only returns an error when
// the context is cancelled mid-pause.
func (r *Runner) Run(ctx context.Context, posts []feed.RawPost) (Stats, error) {
	var stats Stats

	batches := chunk(posts, r.cfg.BatchSize)

	for bi, batch := range batches {
		for pi, post := range batch {
			r.process(ctx, post, &stats)

			if pi < len(batch)-1 {
				if err := r.throttle.Wait(ctx); err != nil {
					return stats, err
				}
			}
		}

		r.logger.Info("batch complete",
			zap.Int("batch", bi+1),
			zap.Int("batches", len(batches)),
			zap.Int("processed", stats.Processed),
			zap.Int("saved", stats.Saved),
		)

		if bi < len(batches)-1 {
			if err := r.sleep(ctx, r.cfg.BatchPause); err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}

func (r *Runner) process(ctx context.Context, post feed.RawPost, stats *Stats) {
	stats.Processed++

	cand, err := r.extractor.Extract(ctx, post)
	if err != nil {
		stats.Failed++
		r.logger.Warn("extraction failed",
			zap.String("post_id", post.ID),
			zap.Error(err),
		)

		return
	}

	stats.Extracted++

	saved, err := r.saver.Save(ctx, cand)

	switch {
	case err != nil:
		stats.Failed++
		r.logger.Error("save failed",
			zap.String("post_id", post.ID),
			zap.String("brand", cand.Brand),
			zap.Error(err),
		)
	case saved:
		stats.Saved++
		r.logger.Info("record saved",
			zap.String("post_id", post.ID),
			zap.String("brand", cand.Brand),
		)
	default:
		stats.Skipped++
	}
}

func chunk(posts []feed.RawPost, size int) [][]feed.RawPost {
	var batches [][]feed.RawPost

	for start := 0; start < len(posts); start += size {
		end := start + size
		if end > len(posts) {
			end = len(posts)
		}

		batches = append(batches, posts[start:end])
	}

	return batches
}
