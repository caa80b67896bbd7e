package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// JobFunc is the work one scheduled job performs.
type JobFunc func(ctx context.Context)

type job struct {
	name string
	expr string
	run  JobFunc
}

// Service runs named jobs on cron schedules, checking due-ness once
// per minute.
type Service struct {
	mu      sync.Mutex
	jobs    []job
	stop    chan struct{}
	stopped sync.WaitGroup
}

func NewService() *Service {
	return &Service{
		stop: make(chan struct{}),
	}
}

// AddJob registers a job under a cron expression. The expression is
// validated up front.
func (s *Service) AddJob(name, expr string, run JobFunc) error {
	gron := gronx.New()
	if !gron.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q for job %s", expr, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, expr: expr, run: run})
	return nil
}

// Start begins the scheduler loop. It returns immediately; jobs run
// on their own goroutine until Stop or context cancellation.
func (s *Service) Start(ctx context.Context) {
	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()

		// align to the next minute boundary so due checks see a
		// stable reference time
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-time.After(next.Sub(now)):
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}

		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		s.tick(ctx, next)
		for {
			select {
			case t := <-ticker.C:
				s.tick(ctx, t.Truncate(time.Minute))
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for the loop to exit. Jobs
// already running are not interrupted.
func (s *Service) Stop() {
	close(s.stop)
	s.stopped.Wait()
}

func (s *Service) tick(ctx context.Context, ref time.Time) {
	s.mu.Lock()
	jobs := make([]job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	gron := gronx.New()
	for _, j := range jobs {
		due, err := gron.IsDue(j.expr, ref)
		if err != nil {
			slog.Error("Cron due check failed", "job", j.name, "error", err)
			continue
		}
		if !due {
			continue
		}
		go s.runJob(ctx, j)
	}
}

func (s *Service) runJob(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Cron job panicked", "job", j.name, "panic", r)
		}
	}()
	slog.Debug("Cron job starting", "job", j.name)
	j.run(ctx)
}
