package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs a named job on a fixed interval until its context is
// cancelled. The clock is injectable for tests.
type Sweeper struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context, now time.Time) error
	now      func() time.Time
}

func NewSweeper(name string, interval time.Duration, job func(ctx context.Context, now time.Time) error) *Sweeper {
	return &Sweeper{
		name:     name,
		interval: interval,
		job:      job,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run blocks until ctx is cancelled. The first sweep fires immediately so a
// restarted process catches up without waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	zap.L().Info("Sweeper starting",
		zap.String("sweeper", s.name),
		zap.Duration("interval", s.interval))

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Sweeper stopping", zap.String("sweeper", s.name))
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := s.now()
	if err := s.job(ctx, start); err != nil {
		if ctx.Err() != nil {
			return
		}
		zap.L().Error("Sweep failed",
			zap.String("sweeper", s.name),
			zap.Error(err))
		return
	}
	zap.L().Debug("Sweep completed",
		zap.String("sweeper", s.name),
		zap.Duration("duration", time.Since(start)))
}
