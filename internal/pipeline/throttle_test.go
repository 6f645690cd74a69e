package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/refhound/refhound/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleep struct {
	calls []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)

	return nil
}

func TestIntervalThrottle(t *testing.T) {
	t.Run("interval is ceiling of budget division", func(t *testing.T) {
		cases := []struct {
			perMinute int
			want      time.Duration
		}{
			{perMinute: 60, want: time.Second},
			{perMinute: 15, want: 4 * time.Second},
			{perMinute: 7, want: 8572 * time.Millisecond},
			{perMinute: 1, want: time.Minute},
		}

		for _, tc := range cases {
			throttle := pipeline.NewIntervalThrottle(tc.perMinute, nil)

			assert.Equal(t, tc.want, throttle.Interval(), "budget %d/min", tc.perMinute)
		}
	})

	t.Run("non-positive budget is clamped to one per minute", func(t *testing.T) {
		throttle := pipeline.NewIntervalThrottle(0, nil)

		assert.Equal(t, time.Minute, throttle.Interval())
	})

	t.Run("wait sleeps exactly one interval", func(t *testing.T) {
		sleeper := &recordingSleep{}
		throttle := pipeline.NewIntervalThrottle(30, sleeper.sleep)

		err := throttle.Wait(context.Background())

		require.NoError(t, err)
		require.Len(t, sleeper.calls, 1)
		assert.Equal(t, 2*time.Second, sleeper.calls[0])
	})
}
