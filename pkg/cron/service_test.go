package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJobValidatesExpression(t *testing.T) {
	s := NewService()

	if err := s.AddJob("ok", "* * * * *", func(ctx context.Context) {}); err != nil {
		t.Errorf("Expected valid expression to register, got: %v", err)
	}
	if err := s.AddJob("every-five", "*/5 * * * *", func(ctx context.Context) {}); err != nil {
		t.Errorf("Expected valid expression to register, got: %v", err)
	}
	if err := s.AddJob("bad", "not a cron", func(ctx context.Context) {}); err == nil {
		t.Error("Expected invalid expression to be rejected")
	}
}

func TestTickRunsDueJobs(t *testing.T) {
	s := NewService()

	var everyMinute, fiveMinute atomic.Int32
	if err := s.AddJob("minute", "* * * * *", func(ctx context.Context) {
		everyMinute.Add(1)
	}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if err := s.AddJob("five", "*/5 * * * *", func(ctx context.Context) {
		fiveMinute.Add(1)
	}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	// 12:01 is due for the minute job only
	s.tick(context.Background(), time.Date(2026, 8, 28, 12, 1, 0, 0, time.UTC))
	waitFor(t, func() bool { return everyMinute.Load() == 1 })
	if fiveMinute.Load() != 0 {
		t.Errorf("Expected five-minute job to stay idle, ran %d times", fiveMinute.Load())
	}

	// 12:05 is due for both
	s.tick(context.Background(), time.Date(2026, 8, 28, 12, 5, 0, 0, time.UTC))
	waitFor(t, func() bool { return everyMinute.Load() == 2 && fiveMinute.Load() == 1 })
}

func TestTickSurvivesPanickingJob(t *testing.T) {
	s := NewService()

	var ran atomic.Bool
	if err := s.AddJob("panics", "* * * * *", func(ctx context.Context) {
		panic("job exploded")
	}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if err := s.AddJob("fine", "* * * * *", func(ctx context.Context) {
		ran.Store(true)
	}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	s.tick(context.Background(), time.Date(2026, 8, 28, 12, 1, 0, 0, time.UTC))
	waitFor(t, func() bool { return ran.Load() })
}

func TestStopHaltsScheduler(t *testing.T) {
	s := NewService()
	s.Start(context.Background())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
