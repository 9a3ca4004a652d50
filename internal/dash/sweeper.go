package dash

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically audits the status store for conversions stuck in
// processing and re-drives them. It is purely time-driven and has no
// state beyond its schedule.
type Sweeper struct {
	svc       *Service
	interval  time.Duration
	threshold time.Duration
	log       *slog.Logger
}

// NewSweeper returns a sweeper that runs every interval and treats
// processing entries older than threshold as stuck.
func NewSweeper(svc *Service, interval, threshold time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, threshold: threshold, log: log}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.svc.SweepStuckJobs(ctx, s.threshold); n > 0 {
				s.log.Info("re-queued stuck conversions", slog.Int("count", n))
			}
		}
	}
}
