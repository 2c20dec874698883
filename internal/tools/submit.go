package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Submitter runs background units of work for the async-create path under a
// concurrency bound. Submitting returns immediately; resolution happens later
// through the task store. It replaces untracked fire-and-forget goroutines
// with an owned handle that can be drained at shutdown.
type Submitter struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	timeout time.Duration
}

func NewSubmitter(limit int, logger *slog.Logger) *Submitter {
	if limit <= 0 {
		limit = 1
	}
	return &Submitter{
		sem:     make(chan struct{}, limit),
		logger:  logger,
		timeout: 10 * time.Minute,
	}
}

// Submit schedules fn on a background context detached from the submitting
// turn; the turn returns to the user while the work runs.
func (s *Submitter) Submit(name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until all submitted work has finished.
func (s *Submitter) Wait() {
	s.wg.Wait()
}
