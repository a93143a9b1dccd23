package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BatchRunner is what the scheduler drives once a day.
type BatchRunner interface {
	RunBatch(ctx context.Context) *Report
}

// Scheduler fires a batch run at a fixed local time every day.
type Scheduler struct {
	runner BatchRunner
	hour   int
	minute int
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewScheduler(runner BatchRunner, hour, minute int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		hour:   hour,
		minute: minute,
		logger: logger.With("component", "scheduler"),
	}
}

// Start launches the scheduling loop. Calling Start on a scheduler that is
// already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler already running, ignoring start")
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.loop(s.stop)
	s.logger.Info("scheduler started", "hour", s.hour, "minute", s.minute)
}

// Stop halts the loop and waits for an in-flight batch to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunNow triggers a batch immediately, outside the daily cadence.
func (s *Scheduler) RunNow(ctx context.Context) *Report {
	s.logger.Info("manual batch run triggered")
	return s.runner.RunBatch(ctx)
}

func (s *Scheduler) loop(stop chan struct{}) {
	defer s.wg.Done()

	for {
		next := nextRun(time.Now(), s.hour, s.minute)
		s.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			s.runner.RunBatch(context.Background())
		}
	}
}

// nextRun returns the next hh:mm after now, rolling to tomorrow when
// today's slot has passed.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
