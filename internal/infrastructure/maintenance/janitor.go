// Package maintenance runs the out-of-band cleanup that keeps token and
// counter storage bounded. Nothing here affects request correctness.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultInterval = 10 * time.Minute

// Purger deletes expired persistent records.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper drops stale entries from an in-process cache.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Janitor periodically purges expired refresh tokens and sweeps in-memory
// stores.
type Janitor struct {
	interval time.Duration
	purger   Purger
	sweepers []Sweeper
	log      zerolog.Logger
	nowFunc  func() time.Time
}

// NewJanitor returns a Janitor. If interval <= 0, defaultInterval is used.
// purger may be nil.
func NewJanitor(interval time.Duration, purger Purger, log zerolog.Logger, sweepers ...Sweeper) *Janitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Janitor{
		interval: interval,
		purger:   purger,
		sweepers: sweepers,
		log:      log,
		nowFunc:  time.Now,
	}
}

// Start launches the cleanup loop. It stops when ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single cleanup pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	if j.purger != nil {
		n, err := j.purger.PurgeExpired(ctx)
		if err != nil {
			j.log.Error().Err(err).Msg("refresh token purge failed")
		} else if n > 0 {
			j.log.Info().Int64("deleted", n).Msg("expired refresh tokens purged")
		}
	}

	now := j.nowFunc()
	swept := 0
	for _, s := range j.sweepers {
		swept += s.Sweep(now)
	}
	if swept > 0 {
		j.log.Debug().Int("entries", swept).Msg("in-memory stores swept")
	}
}
