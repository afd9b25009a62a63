package rcexpires

import (
	"context"
	"time"
)

// Sweeper drives CleanExpired on a fixed interval. The engine itself never
// owns a schedule; hosts that want one start a Sweeper in a goroutine and
// cancel its context to stop. Between ticks a cancelled context is the only
// way to interrupt: the pass that is already running finishes first.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

// NewSweeper returns a sweeper running engine.CleanExpired every interval.
// A non-positive interval defaults to one second, the cadence the engine
// was tuned for.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := s.engine.opts.Logger
	for {
		select {
		case <-ticker.C:
			deleted, err := s.engine.CleanExpired()
			if err != nil {
				// Zero processed this tick; wait for the next one rather
				// than retrying in a tight loop.
				log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int("deleted", deleted).Msg("sweep removed expired records")
			}
		case <-ctx.Done():
			log.Debug().Msg("sweeper stopped")
			return
		}
	}
}
