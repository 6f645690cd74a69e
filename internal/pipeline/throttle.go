// Package pipeline runs the batch extraction-and-ingestion loop: posts are
// processed strictly sequentially under a requests-per-minute budget, saved
// as they go, with longer pauses between fixed-size batches.
package pipeline

import (
	"context"
	"time"
)

// SleepFunc pauses for d, or returns early with the context's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Throttle spaces out calls against a shared rate budget. It is decoupled
// from the batching logic so throughput policy and scheduling policy can be
// tested independently.
type Throttle interface {
	Wait(ctx context.Context) error
}

// IntervalThrottle waits a fixed interval derived from a per-minute budget:
// ceil(60000 / perMinute) milliseconds per call.
type IntervalThrottle struct {
	interval time.Duration
	sleep    SleepFunc
}

// NewIntervalThrottle creates a throttle for the given requests-per-minute
// budget. A nil sleep uses a real timer.
func NewIntervalThrottle(perMinute int, sleep SleepFunc) *IntervalThrottle {
	if perMinute < 1 {
		perMinute = 1
	}

	if sleep == nil {
		sleep = sleepWithContext
	}

	millis := (60000 + int64(perMinute) - 1) / int64(perMinute)

	return &IntervalThrottle{
		interval: time.Duration(millis) * time.Millisecond,
		sleep:    sleep,
	}
}

// Interval returns the per-call delay.
func (t *IntervalThrottle) Interval() time.Duration {
	return t.interval
}

// Wait blocks for one interval.
func (t *IntervalThrottle) Wait(ctx context.Context) error {
	return t.sleep(ctx, t.interval)
}
