package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSweeperRunsImmediatelyAndOnTicks(t *testing.T) {
	var runs int64
	sweeper := NewSweeper("test", 10*time.Millisecond, func(ctx context.Context, now time.Time) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&runs) < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sweeps before deadline", atomic.LoadInt64(&runs))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestSweeperPassesClockTime(t *testing.T) {
	fixed := time.Date(2026, time.August, 24, 12, 0, 0, 0, time.UTC)
	var got atomic.Value

	sweeper := NewSweeper("test", time.Hour, func(ctx context.Context, now time.Time) error {
		got.Store(now)
		return nil
	}).WithClock(func() time.Time { return fixed })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	deadline := time.After(time.Second)
	for got.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !got.Load().(time.Time).Equal(fixed) {
		t.Errorf("job saw %v, want %v", got.Load(), fixed)
	}
}

func TestSweeperSurvivesJobErrors(t *testing.T) {
	var runs int64
	sweeper := NewSweeper("test", 10*time.Millisecond, func(ctx context.Context, now time.Time) error {
		atomic.AddInt64(&runs, 1)
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&runs) < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper stopped after a job error")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
