// Package ratelimit spaces listing requests by a fixed delay.
//
// The listing API documents no rate-limit headers, only the expectation that
// clients pause between page requests. FixedDelay pauses in-process;
// RedisPacer additionally claims a shared slot so several processes using
// the same API key keep the same spacing.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultDelay is the pause between consecutive page requests.
const DefaultDelay = 1 * time.Second

var pacerWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dc_pacer_wait_seconds",
	Help:    "Time spent waiting between listing requests by pacer backend",
	Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
}, []string{"backend"})

// Pacer blocks between successive requests.
type Pacer interface {
	// Wait blocks until the next request may be sent. It returns the
	// context error if ctx ends first.
	Wait(ctx context.Context) error
}

// FixedDelay waits the same duration every time.
type FixedDelay struct {
	Delay time.Duration
}

// NewFixedDelay returns a pacer waiting d between requests. Zero or
// negative durations disable the wait.
func NewFixedDelay(d time.Duration) *FixedDelay {
	return &FixedDelay{Delay: d}
}

// Wait implements Pacer.
func (p *FixedDelay) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		pacerWaitSeconds.WithLabelValues("local").Observe(time.Since(start).Seconds())
	}()
	return sleep(ctx, p.Delay)
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
